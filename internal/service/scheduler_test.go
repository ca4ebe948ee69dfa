package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickyRunner struct{}

func (panickyRunner) Run(_ context.Context, a model.Automation, _ RunOptions) dto.AutomationOutcome {
	if a.Symbol == "BOOM" {
		panic("kaboom")
	}
	return dto.AutomationOutcome{AutomationID: a.ID, Outcome: dto.OutcomeMonitored}
}

func (h *harness) scheduler() *schedulerService {
	return h.svc.SchedulerService.(*schedulerService)
}

func (h *harness) latestCycle(t *testing.T) model.CycleHistory {
	t.Helper()
	rows, err := h.repo.CycleHistoryRepo.Latest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestScheduler_RunCycleNowOpensReadyAutomation(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	a := h.createAutomation(t)
	ctx := context.Background()

	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, dto.OutcomeOpened, result.Outcomes[0].Outcome)
	assert.NotZero(t, result.Outcomes[0].PositionID)
	assert.Equal(t, string(model.CycleTriggerManual), result.Trigger)
	assert.True(t, result.MarketOpen)

	history := h.latestCycle(t)
	assert.Equal(t, result.CycleID, history.CycleID)
	assert.Equal(t, model.CycleStatusCompleted, history.Status)
	assert.Equal(t, 1, history.AutomationsEvaluated)
	assert.Equal(t, 1, history.PositionsOpened)
	assert.Equal(t, 0, history.Failures)
	assert.True(t, history.CompletedAt.Valid)

	stored, err := h.repo.AutomationRepo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastEvaluatedAt)
	assert.Equal(t, 0, stored.ConsecutiveFailures)

	status := h.svc.SchedulerService.Status(ctx)
	assert.Equal(t, int64(1), status.CyclesCompleted)
	assert.Equal(t, result.CycleID, status.LastCycleID)
	assert.False(t, status.CycleInProgress)
	assert.Equal(t, dto.MarketStatusOpen, status.MarketStatus)

	assert.Equal(t, 1.0, counterValue(t, h.registry.Gatherer(), "options_engine_automation_runs_total", map[string]string{"outcome": dto.OutcomeOpened}))
}

func TestScheduler_SecondCycleMonitorsInsteadOfReopening(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	h.createAutomation(t)
	ctx := context.Background()

	_, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeMonitored, result.Outcomes[0].Outcome)
	assert.Equal(t, 1, h.orders.submitted())
}

func TestScheduler_MarketClosedSubmitsNothing(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	a := h.createAutomation(t)
	h.calendar.set(false)
	ctx := context.Background()

	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	assert.False(t, result.MarketOpen)
	assert.Equal(t, dto.OutcomeNotReady, result.Outcomes[0].Outcome)
	assert.Contains(t, result.Outcomes[0].BlockingReasons, "Market is closed; no order submitted")
	assert.Equal(t, 0, h.orders.submitted())

	stored, err := h.repo.AutomationRepo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ConsecutiveFailures)

	report, err := h.svc.AutomationService.Diagnostics(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, report.BlockingReasons, "Market is closed; no order submitted")
}

func TestScheduler_ExecutionRetriesAreCapped(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	h.orders.reject = "trading halted"
	a := h.createAutomation(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := h.svc.SchedulerService.RunCycleNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, dto.OutcomeFailed, result.Outcomes[0].Outcome)

		stored, err := h.repo.AutomationRepo.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, i, stored.ConsecutiveFailures)
		require.NotNil(t, stored.LastError)
		assert.Contains(t, *stored.LastError, "trading halted")
	}
	assert.Equal(t, 1, h.latestCycle(t).Failures)

	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeNotReady, result.Outcomes[0].Outcome)
	require.Len(t, result.Outcomes[0].BlockingReasons, 1)
	assert.Contains(t, result.Outcomes[0].BlockingReasons[0], "Execution failed 3 consecutive times")
	assert.Equal(t, 3, h.orders.submitted())

	_, err = h.svc.AutomationService.Toggle(ctx, a.ID)
	require.NoError(t, err)
	toggled, err := h.svc.AutomationService.Toggle(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)
	assert.Equal(t, 0, toggled.ConsecutiveFailures)
	assert.Nil(t, toggled.LastError)

	h.orders.reject = ""
	result, err = h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeOpened, result.Outcomes[0].Outcome)
}

func TestScheduler_TestTradeRelaxesThresholds(t *testing.T) {
	h := newHarness(t)
	c := contractFixture(model.ContractCall, 190, 30, 3.45, 3.55, 0.5)
	c.Volume = 3
	h.market.setChain("AAPL", c)
	h.market.setOption(c.Symbol, 3.50)
	h.signals.confidence = 0.2
	a := h.createAutomation(t, func(a *model.Automation) { a.MinConfidence = 0.9 })
	ctx := context.Background()

	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeNotReady, result.Outcomes[0].Outcome)
	assert.Equal(t, 0, h.orders.submitted())

	outcome, err := h.svc.SchedulerService.TestTrade(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeOpened, outcome.Outcome)
	assert.Equal(t, 1, h.orders.submitted())

	history := h.latestCycle(t)
	assert.Equal(t, model.CycleTriggerTestTrade, history.Trigger)
	assert.Equal(t, 1, history.PositionsOpened)
}

func TestScheduler_TestTradeAcceptsNeutralSignal(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	h.signals.confidence = 0.03
	h.signals.direction = dto.DirectionNeutral
	a := h.createAutomation(t)
	ctx := context.Background()

	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	require.Equal(t, dto.OutcomeNotReady, result.Outcomes[0].Outcome)
	assert.Contains(t, strings.Join(result.Outcomes[0].BlockingReasons, "\n"), "does not fit long_call")

	outcome, err := h.svc.SchedulerService.TestTrade(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeOpened, outcome.Outcome)
	assert.Equal(t, 1, h.orders.submitted())
}

func TestScheduler_TestTradeRejectsOpposingSignal(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	h.signals.confidence = 0.6
	h.signals.direction = dto.DirectionBearish
	a := h.createAutomation(t)

	outcome, err := h.svc.SchedulerService.TestTrade(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeNotReady, outcome.Outcome)
	assert.Contains(t, outcome.BlockingReasons, "Signal direction bearish does not fit long_call (needs bullish)")
	assert.Equal(t, 0, h.orders.submitted())
}

func TestScheduler_TestTradeKeepsSafetyChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive automation", func(t *testing.T) {
		h := newHarness(t)
		h.withLongCallMarket()
		a := h.createAutomation(t, func(a *model.Automation) { a.IsActive = false })

		outcome, err := h.svc.SchedulerService.TestTrade(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, dto.OutcomeNotReady, outcome.Outcome)
		assert.Contains(t, outcome.BlockingReasons, "Automation is inactive")
	})

	t.Run("risk limits", func(t *testing.T) {
		h := newHarness(t)
		h.withLongCallMarket()
		h.setLimits(t, model.RiskLimits{MaxPositionSizePct: 0.1})
		a := h.createAutomation(t)

		outcome, err := h.svc.SchedulerService.TestTrade(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, dto.OutcomeNotReady, outcome.Outcome)
		assert.Equal(t, 0, h.orders.submitted())
	})

	t.Run("unknown automation", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.SchedulerService.TestTrade(ctx, 99)
		assert.ErrorIs(t, err, dto.ErrNotFound)
	})
}

func TestScheduler_PanicIsIsolated(t *testing.T) {
	h := newHarness(t)
	boom := h.createAutomation(t, func(a *model.Automation) { a.Symbol = "BOOM" })
	calm := h.createAutomation(t, func(a *model.Automation) { a.Symbol = "CALM" })
	s := NewSchedulerService(h.cfg, logger.NewNop(), h.repo, panickyRunner{}, h.svc.Pipeline.monitor, h.calendar, h.clock, metrics.New(), NewEngineState())

	result, err := s.RunCycleNow(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)

	assert.Equal(t, boom.ID, result.Outcomes[0].AutomationID)
	assert.Equal(t, dto.OutcomeFailed, result.Outcomes[0].Outcome)
	assert.True(t, strings.HasPrefix(result.Outcomes[0].Message, "panic recovered: kaboom"))
	assert.NotContains(t, result.Outcomes[0].Message, "\n")

	assert.Equal(t, calm.ID, result.Outcomes[1].AutomationID)
	assert.Equal(t, dto.OutcomeMonitored, result.Outcomes[1].Outcome)

	assert.Equal(t, 1, h.latestCycle(t).Failures)
}

func TestScheduler_MonitorsPositionsOfInactiveAutomations(t *testing.T) {
	h := newHarness(t)
	a := h.createAutomation(t)
	pos := h.openAutomationPosition(t, a)
	ctx := context.Background()

	_, err := h.svc.AutomationService.Toggle(ctx, a.ID)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	h.market.setOption(pos.OptionSymbol, 5.50)
	result, err := h.svc.SchedulerService.RunCycleNow(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)

	stored, err := h.repo.PositionRepo.FindByID(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PositionStatusClosed, stored.Status)
	assert.Equal(t, model.ExitReasonProfitTarget, stored.ExitReason)
	assert.Equal(t, 1, h.latestCycle(t).PositionsClosed)
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(t)
	s := h.svc.SchedulerService
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))

	status := s.Status(ctx)
	assert.True(t, status.Running)
	require.NotNil(t, status.NextCycleAt)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))

	status = s.Status(ctx)
	assert.False(t, status.Running)
	assert.Nil(t, status.NextCycleAt)
}

func TestScheduler_StartRejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t)
	h.cfg.Scheduler.CycleInterval = 0

	err := h.svc.SchedulerService.Start(context.Background())
	assert.ErrorIs(t, err, dto.ErrInvalidInput)
}

func TestScheduler_TickIdlesWhenMarketClosed(t *testing.T) {
	h := newHarness(t)
	h.withLongCallMarket()
	h.createAutomation(t)
	h.calendar.set(false)

	h.scheduler().tick(context.Background())

	rows, err := h.repo.CycleHistoryRepo.Latest(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, h.orders.submitted())
}

func TestScheduler_CleanupDropsOldHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old := &model.CycleHistory{CycleID: "old", Trigger: model.CycleTriggerSchedule, Status: model.CycleStatusCompleted, StartedAt: testNow.AddDate(0, 0, -45)}
	recent := &model.CycleHistory{CycleID: "recent", Trigger: model.CycleTriggerSchedule, Status: model.CycleStatusCompleted, StartedAt: testNow.AddDate(0, 0, -2)}
	require.NoError(t, h.repo.CycleHistoryRepo.Create(ctx, old))
	require.NoError(t, h.repo.CycleHistoryRepo.Create(ctx, recent))

	h.scheduler().cleanup(ctx)

	rows, err := h.repo.CycleHistoryRepo.Latest(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "recent", rows[0].CycleID)
}
