package service

import (
	"context"
	"testing"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest() dto.CreateAutomationRequest {
	return dto.CreateAutomationRequest{
		Name:            "msft puts",
		Symbol:          "MSFT",
		StrategyType:    string(model.StrategyLongPut),
		MinConfidence:   0.65,
		ProfitTargetPct: 40,
		StopLossPct:     25,
		PreferredDTE:    30,
		MinDTE:          14,
		MaxDTE:          45,
	}
}

func TestAutomationService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		h := newHarness(t)
		a, err := h.svc.AutomationService.Create(ctx, validCreateRequest())
		require.NoError(t, err)
		assert.NotZero(t, a.ID)
		assert.Equal(t, h.cfg.Engine.DefaultAccountID, a.AccountID)
		assert.Equal(t, 1, a.Quantity)
		assert.True(t, a.IsActive)

		stored, err := h.svc.AutomationService.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "MSFT", stored.Symbol)
	})

	t.Run("created inactive", func(t *testing.T) {
		h := newHarness(t)
		req := validCreateRequest()
		req.IsActive = utils.ToPointer(false)
		a, err := h.svc.AutomationService.Create(ctx, req)
		require.NoError(t, err)
		assert.False(t, a.IsActive)
	})

	t.Run("invalid DTE window", func(t *testing.T) {
		h := newHarness(t)
		req := validCreateRequest()
		req.MinDTE = 50
		_, err := h.svc.AutomationService.Create(ctx, req)
		assert.ErrorIs(t, err, dto.ErrInvalidInput)
	})

	t.Run("lowercase symbol", func(t *testing.T) {
		h := newHarness(t)
		req := validCreateRequest()
		req.Symbol = "msft"
		_, err := h.svc.AutomationService.Create(ctx, req)
		assert.ErrorIs(t, err, dto.ErrInvalidInput)
	})

	t.Run("unknown account", func(t *testing.T) {
		h := newHarness(t)
		req := validCreateRequest()
		req.AccountID = 77
		_, err := h.svc.AutomationService.Create(ctx, req)
		assert.ErrorIs(t, err, dto.ErrInvalidInput)
		assert.Contains(t, err.Error(), "account 77 does not exist")
	})
}

func TestAutomationService_Update(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	a := h.createAutomation(t, func(a *model.Automation) {
		a.ConsecutiveFailures = 3
		a.LastError = utils.ToPointer("order execution failed")
	})
	ctx := context.Background()

	_, err := h.svc.Diagnostics.Explain(ctx, a, dto.DiagnosticsOptions{})
	require.NoError(t, err)

	updated, err := h.svc.AutomationService.Update(ctx, a.ID, dto.UpdateAutomationRequest{
		Quantity:      utils.ToPointer(4),
		MinConfidence: utils.ToPointer(0.75),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, 0.75, updated.MinConfidence)
	assert.Equal(t, 0, updated.ConsecutiveFailures)
	assert.Nil(t, updated.LastError)
	assert.Equal(t, "AAPL", updated.Symbol)

	_, ok := h.svc.Diagnostics.Cached(a.ID)
	assert.False(t, ok)

	_, err = h.svc.AutomationService.Update(ctx, a.ID, dto.UpdateAutomationRequest{MaxDTE: utils.ToPointer(10)})
	assert.ErrorIs(t, err, dto.ErrInvalidInput)

	stored, err := h.svc.AutomationService.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.MaxDTE)

	_, err = h.svc.AutomationService.Update(ctx, 404, dto.UpdateAutomationRequest{})
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestAutomationService_Toggle(t *testing.T) {
	h := newHarness(t)
	a := h.createAutomation(t)
	ctx := context.Background()

	toggled, err := h.svc.AutomationService.Toggle(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	active, err := h.svc.AutomationService.List(ctx, model.GetAutomationsParam{IsActive: utils.ToPointer(true)})
	require.NoError(t, err)
	assert.Empty(t, active)

	toggled, err = h.svc.AutomationService.Toggle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	_, err = h.svc.AutomationService.Toggle(ctx, 404)
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestAutomationService_Diagnostics(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	a := h.createAutomation(t)
	ctx := context.Background()

	fresh, err := h.svc.AutomationService.Diagnostics(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, fresh.IsReady)

	h.signals.confidence = 0.1
	cached, err := h.svc.AutomationService.Diagnostics(ctx, a.ID)
	require.NoError(t, err)
	assert.Same(t, fresh, cached)

	_, err = h.svc.AutomationService.Diagnostics(ctx, 404)
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestPositionService_ListAndTrades(t *testing.T) {
	h := newHarness(t)
	c := h.withLongCallMarket()
	a := h.createAutomation(t)
	ctx := context.Background()

	manual, err := h.svc.PositionService.Open(ctx, dto.OpenPositionRequest{Symbol: "AAPL", OptionSymbol: c.Symbol, Quantity: 1})
	require.NoError(t, err)
	auto := h.openAutomationPosition(t, a)

	_, err = h.svc.PositionService.Close(ctx, manual.PositionID, "")
	require.NoError(t, err)

	all, err := h.svc.PositionService.List(ctx, dto.ListPositionsQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := h.svc.PositionService.List(ctx, dto.ListPositionsQuery{Status: "open"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, auto.ID, open[0].ID)

	closed, err := h.svc.PositionService.List(ctx, dto.ListPositionsQuery{Status: string(model.PositionStatusClosed)})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, model.ExitReasonManual, closed[0].ExitReason)

	byAutomation, err := h.svc.PositionService.List(ctx, dto.ListPositionsQuery{AutomationID: a.ID})
	require.NoError(t, err)
	require.Len(t, byAutomation, 1)

	trades, err := h.svc.PositionService.Trades(ctx, manual.PositionID)
	require.NoError(t, err)
	assert.Len(t, trades, 2)

	_, err = h.svc.PositionService.Trades(ctx, 404)
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestPositionService_OpenRejectsBadOptionSymbol(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.PositionService.Open(context.Background(), dto.OpenPositionRequest{Symbol: "AAPL", OptionSymbol: "NOT-AN-OCC", Quantity: 1})
	assert.ErrorIs(t, err, dto.ErrInvalidInput)
}

func TestAccountService_EnsureDefaultIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.AccountService.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100000.00", first.Balance.StringFixed(2))

	c := h.withLongCallMarket()
	_, err = h.svc.Coordinator.Open(ctx, h.openRequest(c, 1))
	require.NoError(t, err)

	again, err := h.svc.AccountService.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "99650.00", again.Balance.StringFixed(2))

	state, err := h.svc.AccountService.State(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.OpenPositions)
	assert.Equal(t, "350.00", state.CapitalAtRisk.StringFixed(2))

	_, err = h.svc.AccountService.Get(ctx, 404)
	assert.ErrorIs(t, err, dto.ErrNotFound)
}
