package service

import (
	"context"
	"fmt"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/internal/strategy"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
	"golang-options/pkg/utils"
)

// RunOptions tune one automation run. TestTrade relaxes the confidence and
// liquidity thresholds only.
type RunOptions struct {
	CycleID   string
	TestTrade bool
}

// Pipeline evaluates one automation end to end: diagnose, open when ready,
// then monitor its open positions.
type Pipeline struct {
	cfg         *config.Config
	log         *logger.Logger
	repo        *repository.Repository
	diagnostics *DiagnosticsEngine
	coordinator *OrderCoordinator
	monitor     *PositionMonitor
	calendar    contract.MarketCalendar
	clock       clock.Clock
	metrics     *metrics.Registry
}

func NewPipeline(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	diagnostics *DiagnosticsEngine,
	coordinator *OrderCoordinator,
	monitor *PositionMonitor,
	calendar contract.MarketCalendar,
	clk clock.Clock,
	registry *metrics.Registry,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		log:         log,
		repo:        repo,
		diagnostics: diagnostics,
		coordinator: coordinator,
		monitor:     monitor,
		calendar:    calendar,
		clock:       clk,
		metrics:     registry,
	}
}

func (p *Pipeline) Run(ctx context.Context, a model.Automation, opts RunOptions) dto.AutomationOutcome {
	log := p.log.FromContext(ctx).With(
		logger.AutomationField(a.ID),
		logger.StringField("symbol", a.Symbol))
	ctx = logger.NewContext(ctx, log)
	outcome := dto.AutomationOutcome{AutomationID: a.ID}

	report, err := p.diagnostics.Explain(ctx, &a, p.diagnosticsOptions(opts))
	if err != nil {
		log.ErrorContext(ctx, "Diagnostics failed", logger.ErrorField(err))
		outcome.Outcome = dto.OutcomeFailed
		outcome.Message = err.Error()
		p.finish(ctx, log, &a, outcome, a.ConsecutiveFailures, a.LastError)
		return outcome
	}

	failures, lastError := a.ConsecutiveFailures, a.LastError
	switch {
	case !report.IsReady:
		outcome.Outcome = dto.OutcomeNotReady
		outcome.BlockingReasons = report.BlockingReasons
	case !p.calendar.IsMarketOpen(p.clock.Now()):
		report = p.diagnostics.Annotate(report, "Market is closed; no order submitted")
		outcome.Outcome = dto.OutcomeNotReady
		outcome.BlockingReasons = report.BlockingReasons
	case !utils.ShouldContinue(ctx, log):
		outcome.Outcome = dto.OutcomeSkipped
		outcome.Message = "cycle cancelled before execution"
	default:
		fill, err := p.coordinator.Open(ctx, p.openRequest(&a, report))
		if err != nil {
			report = p.diagnostics.Annotate(report, fmt.Sprintf("Execution failed: %v", err))
			outcome.BlockingReasons = report.BlockingReasons
			outcome.Message = err.Error()
			outcome.Outcome = dto.OutcomeNotReady
			if dto.IsRetryable(err) {
				failures++
				msg := err.Error()
				lastError = &msg
				outcome.Outcome = dto.OutcomeFailed
				log.WarnContext(ctx, "Execution failed",
					logger.IntField("consecutive_failures", failures),
					logger.ErrorField(err))
			} else {
				log.InfoContext(ctx, "Execution declined", logger.ErrorField(err))
			}
			break
		}
		failures, lastError = 0, nil
		outcome.Outcome = dto.OutcomeOpened
		outcome.PositionID = fill.PositionID
	}

	positions, err := p.repo.PositionRepo.Get(ctx, model.GetPositionsParam{AutomationID: &a.ID, OpenOnly: true})
	if err != nil {
		log.ErrorContext(ctx, "Failed to load positions for monitoring", logger.ErrorField(err))
	} else if len(positions) > 0 {
		res := p.monitor.Monitor(ctx, &a, positions)
		outcome.PositionsClosed = res.Closed
		if outcome.Outcome == dto.OutcomeNotReady && outcome.Message == "" {
			outcome.Outcome = dto.OutcomeMonitored
		}
	}

	p.finish(ctx, log, &a, outcome, failures, lastError)
	return outcome
}

func (p *Pipeline) diagnosticsOptions(opts RunOptions) dto.DiagnosticsOptions {
	out := dto.DiagnosticsOptions{CycleID: opts.CycleID}
	if opts.TestTrade {
		relaxed := p.cfg.TestTrade
		out.MinConfidence = utils.ToPointer(0.0)
		out.AllowNeutralSignal = true
		out.MinVolume = utils.ToPointer(relaxed.MinVolume)
		out.MinOpenInterest = utils.ToPointer(relaxed.MinOpenInterest)
		out.MaxSpreadPct = utils.ToPointer(relaxed.MaxSpreadPct)
	}
	return out
}

func (p *Pipeline) openRequest(a *model.Automation, report *dto.DiagnosticsReport) dto.OpenRequest {
	variant, _ := strategy.For(a.StrategyType)
	spec := report.SelectedContract.Spec()
	id := a.ID
	return dto.OpenRequest{
		AccountID:     a.AccountID,
		AutomationID:  &id,
		Symbol:        a.Symbol,
		Option:        &spec,
		Side:          variant.Side,
		Quantity:      a.Quantity,
		Source:        model.TradeSourceAutomation,
		Signal:        report.Signal,
		AllowMultiple: a.AllowMultiplePositions,
	}
}

func (p *Pipeline) finish(ctx context.Context, log *logger.Logger, a *model.Automation, outcome dto.AutomationOutcome, failures int, lastError *string) {
	// Bookkeeping must land even when the cycle is being cancelled.
	if err := p.repo.AutomationRepo.RecordEvaluation(context.WithoutCancel(ctx), a.ID, failures, lastError, p.clock.Now()); err != nil {
		log.ErrorContext(ctx, "Failed to record evaluation", logger.ErrorField(err))
	}
	if p.metrics != nil {
		p.metrics.AutomationRuns.WithLabelValues(outcome.Outcome).Inc()
	}
}
