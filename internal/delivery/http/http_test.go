package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang-options/config"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/service"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAutomations struct {
	listParam  model.GetAutomationsParam
	created    dto.CreateAutomationRequest
	err        error
	automation *model.Automation
}

func (s *stubAutomations) List(_ context.Context, param model.GetAutomationsParam) ([]model.Automation, error) {
	s.listParam = param
	return []model.Automation{{ID: 1, Symbol: "AAPL"}}, s.err
}

func (s *stubAutomations) Get(_ context.Context, id uint) (*model.Automation, error) {
	return s.automation, s.err
}

func (s *stubAutomations) Create(_ context.Context, req dto.CreateAutomationRequest) (*model.Automation, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.Automation{ID: 7, Symbol: req.Symbol}, nil
}

func (s *stubAutomations) Update(_ context.Context, id uint, _ dto.UpdateAutomationRequest) (*model.Automation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Automation{ID: id}, nil
}

func (s *stubAutomations) Toggle(_ context.Context, id uint) (*model.Automation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Automation{ID: id, IsActive: true}, nil
}

func (s *stubAutomations) Diagnostics(_ context.Context, id uint) (*dto.DiagnosticsReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.DiagnosticsReport{AutomationID: id, BlockingReasons: []string{"Automation is inactive"}}, nil
}

type stubScheduler struct {
	service.SchedulerService
	err error
}

func (s *stubScheduler) RunCycleNow(context.Context) (*dto.CycleResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CycleResult{CycleID: "cycle-1", Trigger: string(model.CycleTriggerManual)}, nil
}

func (s *stubScheduler) TestTrade(_ context.Context, id uint) (*dto.AutomationOutcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.AutomationOutcome{AutomationID: id, Outcome: dto.OutcomeOpened, PositionID: 3}, nil
}

func (s *stubScheduler) Status(context.Context) dto.EngineStatus {
	return dto.EngineStatus{Running: true, CyclesCompleted: 4, MarketStatus: dto.MarketStatusOpen}
}

type stubPositions struct {
	service.PositionService
	err         error
	closeReason string
}

func (s *stubPositions) List(_ context.Context, query dto.ListPositionsQuery) ([]model.Position, error) {
	return []model.Position{{ID: 1, Symbol: "AAPL"}}, s.err
}

func (s *stubPositions) Open(_ context.Context, req dto.OpenPositionRequest) (*dto.Fill, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.Fill{PositionID: 9, Symbol: req.Symbol, Quantity: req.Quantity}, nil
}

func (s *stubPositions) Close(_ context.Context, id uint, reason string) (*dto.Fill, error) {
	s.closeReason = reason
	if s.err != nil {
		return nil, s.err
	}
	return &dto.Fill{PositionID: id, ExitReason: reason}, nil
}

type fixture struct {
	echo        *echo.Echo
	automations *stubAutomations
	scheduler   *stubScheduler
	positions   *stubPositions
}

func newFixture(t *testing.T, mutate ...func(cfg *config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{}
	for _, m := range mutate {
		m(cfg)
	}

	f := &fixture{
		echo:        echo.New(),
		automations: &stubAutomations{automation: &model.Automation{ID: 1}},
		scheduler:   &stubScheduler{},
		positions:   &stubPositions{},
	}
	svc := &service.Service{
		AutomationService: f.automations,
		SchedulerService:  f.scheduler,
		PositionService:   f.positions,
	}
	NewHttpAPIHandler(context.Background(), cfg, logger.NewNop(), f.echo, goValidator.New(), svc, metrics.New()).SetupRoutes()
	return f
}

func (f *fixture) do(method, path, body string) (*httptest.ResponseRecorder, dto.BaseResponse) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	var resp dto.BaseResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestAutomationRoutes(t *testing.T) {
	t.Run("list with filters", func(t *testing.T) {
		f := newFixture(t)
		rec, resp := f.do(http.MethodGet, "/api/v1/automations?active=false&account_id=2", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, http.StatusOK, resp.Code)
		require.NotNil(t, f.automations.listParam.IsActive)
		assert.False(t, *f.automations.listParam.IsActive)
		require.NotNil(t, f.automations.listParam.AccountID)
		assert.Equal(t, uint(2), *f.automations.listParam.AccountID)
	})

	t.Run("list without filters", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodGet, "/api/v1/automations", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, f.automations.listParam.IsActive)
		assert.Nil(t, f.automations.listParam.AccountID)
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		body := `{"name":"aapl calls","symbol":"AAPL","strategy_type":"long_call","min_confidence":0.6,"preferred_dte":30,"min_dte":21,"max_dte":60}`
		rec, resp := f.do(http.MethodPost, "/api/v1/automations", body)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Automation created", resp.Message)
		assert.Equal(t, "long_call", f.automations.created.StrategyType)
	})

	t.Run("create fails validation", func(t *testing.T) {
		f := newFixture(t)
		rec, resp := f.do(http.MethodPost, "/api/v1/automations", `{"symbol":"aapl","strategy_type":"iron_condor"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Message, "StrategyType")
		assert.Empty(t, f.automations.created.Symbol)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodPost, "/api/v1/automations", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update unknown automation", func(t *testing.T) {
		f := newFixture(t)
		f.automations.err = fmt.Errorf("automation 5: %w", dto.ErrNotFound)
		rec, _ := f.do(http.MethodPatch, "/api/v1/automations/5", `{"quantity":2}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("toggle with a bad id", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodPost, "/api/v1/automations/abc/toggle", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("toggle", func(t *testing.T) {
		f := newFixture(t)
		rec, resp := f.do(http.MethodPost, "/api/v1/automations/3/toggle", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Automation toggled", resp.Message)
	})

	t.Run("diagnostics", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodGet, "/api/v1/automations/3/diagnostics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Automation is inactive")
	})

	t.Run("test trade", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodPost, "/api/v1/automations/3/test-trade", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"outcome":"opened"`)
	})
}

func TestEngineRoutes(t *testing.T) {
	f := newFixture(t)

	rec, resp := f.do(http.MethodPost, "/api/v1/engine/run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cycle completed", resp.Message)
	assert.Contains(t, rec.Body.String(), `"cycle_id":"cycle-1"`)

	rec, _ = f.do(http.MethodGet, "/api/v1/engine/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cycles_completed":4`)

	f.scheduler.err = fmt.Errorf("load active automations: %w", dto.ErrTransactionFailure)
	rec, _ = f.do(http.MethodPost, "/api/v1/engine/run", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPositionRoutes(t *testing.T) {
	t.Run("list validates status", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodGet, "/api/v1/positions?status=open", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = f.do(http.MethodGet, "/api/v1/positions?status=weird", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("open", func(t *testing.T) {
		f := newFixture(t)
		rec, resp := f.do(http.MethodPost, "/api/v1/positions", `{"symbol":"AAPL","quantity":10}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Position opened", resp.Message)
	})

	t.Run("open denied by risk", func(t *testing.T) {
		f := newFixture(t)
		f.positions.err = dto.NewRiskDeniedError("position_size", "Position size 7.00% of balance exceeds max 5.00%", nil)
		rec, resp := f.do(http.MethodPost, "/api/v1/positions", `{"symbol":"AAPL","quantity":10}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, resp.Message, "Position size 7.00%")
	})

	t.Run("close with and without reason", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(http.MethodPost, "/api/v1/positions/4/close", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, f.positions.closeReason)

		rec, _ = f.do(http.MethodPost, "/api/v1/positions/4/close", `{"reason":"rolling"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "rolling", f.positions.closeReason)
	})

	t.Run("close twice conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.positions.err = fmt.Errorf("close position 4: %w", dto.ErrPositionClosed)
		rec, _ := f.do(http.MethodPost, "/api/v1/positions/4/close", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", dto.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", dto.ErrInvalidInput), http.StatusBadRequest},
		{dto.ErrInvalidSymbol, http.StatusBadRequest},
		{dto.ErrPositionClosed, http.StatusConflict},
		{dto.NewRiskDeniedError("funds", "no cash", dto.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", dto.ErrPriceFetchFailed), http.StatusUnprocessableEntity},
		{dto.ErrPriceRejected, http.StatusUnprocessableEntity},
		{dto.ErrNoSuitableOption, http.StatusUnprocessableEntity},
		{dto.ErrExecution, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, errorResponse(tt.err).Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "options_engine_running")
}

func TestRateLimiter(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.API.RateLimitPerSecond = 0.001
		cfg.API.RateLimitBurst = 1
	})

	rec, _ := f.do(http.MethodGet, "/api/v1/engine/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(http.MethodGet, "/api/v1/engine/status", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `options_engine_http_throttled_total{route="/api/v1/engine/status"} 1`)
}
