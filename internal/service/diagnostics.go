package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/strategy"
	"golang-options/pkg/cache"
	"golang-options/pkg/clock"
	"golang-options/pkg/common"
	"golang-options/pkg/logger"

	"github.com/shopspring/decimal"
)

// DiagnosticsEngine explains whether an automation would trade right now.
// Every check runs, so the report lists all blocking reasons at once.
type DiagnosticsEngine struct {
	cfg         *config.Config
	log         *logger.Logger
	signals     contract.SignalEvaluator
	market      contract.MarketDataProvider
	selector    *OptionSelector
	coordinator *OrderCoordinator
	risk        *RiskManager
	fetcher     *PremiumFetcher
	reports     *cache.Store[*dto.DiagnosticsReport]
	clock       clock.Clock
}

func NewDiagnosticsEngine(
	cfg *config.Config,
	log *logger.Logger,
	signals contract.SignalEvaluator,
	market contract.MarketDataProvider,
	selector *OptionSelector,
	coordinator *OrderCoordinator,
	risk *RiskManager,
	fetcher *PremiumFetcher,
	c cache.Cache,
	clk clock.Clock,
) *DiagnosticsEngine {
	return &DiagnosticsEngine{
		cfg:         cfg,
		log:         log,
		signals:     signals,
		market:      market,
		selector:    selector,
		coordinator: coordinator,
		risk:        risk,
		fetcher:     fetcher,
		reports:     cache.NewStore[*dto.DiagnosticsReport](c, common.KEY_DIAGNOSTICS_REPORT, cfg.Engine.DiagnosticsTTL),
		clock:       clk,
	}
}

type reportBuilder struct {
	report *dto.DiagnosticsReport
}

func (b *reportBuilder) pass(name, detail string) {
	b.report.Checks = append(b.report.Checks, dto.DiagnosticCheck{Name: name, Passed: true, Detail: detail})
}

func (b *reportBuilder) fail(name string, reasons ...string) {
	for _, r := range reasons {
		b.report.Checks = append(b.report.Checks, dto.DiagnosticCheck{Name: name, Passed: false, Detail: r})
		b.report.BlockingReasons = append(b.report.BlockingReasons, r)
	}
}

// Explain runs the readiness checks in a fixed order and caches the report.
func (d *DiagnosticsEngine) Explain(ctx context.Context, a *model.Automation, opts dto.DiagnosticsOptions) (*dto.DiagnosticsReport, error) {
	variant, err := strategy.For(a.StrategyType)
	if err != nil {
		return nil, err
	}

	now := d.clock.Now()
	b := &reportBuilder{report: &dto.DiagnosticsReport{
		AutomationID:    a.ID,
		CycleID:         opts.CycleID,
		BlockingReasons: []string{},
		Checks:          []dto.DiagnosticCheck{},
		GeneratedAt:     now,
	}}

	if a.IsActive {
		b.pass(dto.CheckActive, "Automation is active")
	} else {
		b.fail(dto.CheckActive, "Automation is inactive")
	}

	state, err := d.coordinator.AccountState(ctx, a.AccountID, &a.ID)
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", a.AccountID, err)
	}

	if state.AutomationOpenPositions > 0 && !a.AllowMultiplePositions {
		b.fail(dto.CheckExistingPosition, fmt.Sprintf("Automation already has %d open position(s) and multiple positions are disallowed", state.AutomationOpenPositions))
	} else {
		b.pass(dto.CheckExistingPosition, fmt.Sprintf("%d open position(s) for this automation", state.AutomationOpenPositions))
	}

	if limit := state.Limits.MaxOpenPositions; limit > 0 && state.OpenPositions >= limit {
		b.fail(dto.CheckMaxPositions, fmt.Sprintf("Max open positions reached (%d/%d)", state.OpenPositions, limit))
	} else {
		b.pass(dto.CheckMaxPositions, fmt.Sprintf("%d open position(s) on the account", state.OpenPositions))
	}

	if maxRetries := d.cfg.Scheduler.MaxExecutionRetries; maxRetries > 0 && a.ConsecutiveFailures >= maxRetries {
		lastErr := "unknown"
		if a.LastError != nil {
			lastErr = *a.LastError
		}
		b.fail(dto.CheckExecutionRetries, fmt.Sprintf("Execution failed %d consecutive times (last error: %s); update or toggle the automation to retry",
			a.ConsecutiveFailures, lastErr))
	} else {
		b.pass(dto.CheckExecutionRetries, fmt.Sprintf("%d consecutive execution failure(s)", a.ConsecutiveFailures))
	}

	d.checkSignal(ctx, b, a, variant, opts)
	d.checkSelection(ctx, b, a, variant, opts, now)
	d.checkRisk(ctx, b, a, variant, state)

	b.report.IsReady = len(b.report.BlockingReasons) == 0
	d.store(b.report)
	return b.report, nil
}

func (d *DiagnosticsEngine) checkSignal(ctx context.Context, b *reportBuilder, a *model.Automation, variant strategy.Variant, opts dto.DiagnosticsOptions) {
	minConfidence := a.MinConfidence
	if opts.MinConfidence != nil {
		minConfidence = *opts.MinConfidence
	}

	signal, err := d.signals.Evaluate(ctx, a.Symbol)
	if err != nil {
		b.fail(dto.CheckSignal, fmt.Sprintf("Signal unavailable for %s: %v", a.Symbol, err))
		return
	}
	b.report.Signal = signal

	passed := true
	if signal.Confidence < minConfidence {
		b.fail(dto.CheckSignal, fmt.Sprintf("Signal confidence %.2f is below minimum %.2f", signal.Confidence, minConfidence))
		passed = false
	}
	directionOK := variant.Accepts(signal.Direction) ||
		(opts.AllowNeutralSignal && signal.Direction == dto.DirectionNeutral)
	if !directionOK {
		b.fail(dto.CheckSignal, fmt.Sprintf("Signal direction %s does not fit %s (needs %s)", signal.Direction, a.StrategyType, variant.ExpectedDirection()))
		passed = false
	}
	if passed {
		b.pass(dto.CheckSignal, fmt.Sprintf("Signal %s with confidence %.2f", signal.Direction, signal.Confidence))
	}
}

func (d *DiagnosticsEngine) checkSelection(ctx context.Context, b *reportBuilder, a *model.Automation, variant strategy.Variant, opts dto.DiagnosticsOptions, now time.Time) {
	liquidity := d.cfg.Selector
	if opts.MinVolume != nil {
		liquidity.MinVolume = *opts.MinVolume
	}
	if opts.MinOpenInterest != nil {
		liquidity.MinOpenInterest = *opts.MinOpenInterest
	}
	if opts.MaxSpreadPct != nil {
		liquidity.MaxSpreadPct = *opts.MaxSpreadPct
	}
	cons := d.selector.Constraints(a, variant, liquidity)

	chain, err := d.market.GetChain(ctx, a.Symbol, time.Time{})
	if err != nil {
		b.fail(dto.CheckOptionSelection, fmt.Sprintf("Option chain unavailable for %s: %v", a.Symbol, err))
		return
	}

	selected, err := d.selector.Select(chain, cons, now)
	if err != nil {
		b.fail(dto.CheckOptionSelection, d.selector.ExplainEmpty(chain, cons, now))
		return
	}
	b.report.SelectedContract = &selected
	b.pass(dto.CheckOptionSelection, fmt.Sprintf("Selected %s (DTE %d, delta %.2f, mid %.2f)", selected.Symbol, selected.DTE(now), selected.Delta, selected.Mid()))
}

// checkRisk sizes the selected contract at its chain mid. Without a contract
// only the account level limits can fail.
func (d *DiagnosticsEngine) checkRisk(ctx context.Context, b *reportBuilder, a *model.Automation, variant strategy.Variant, state dto.AccountState) {
	proposed := dto.ProposedTrade{
		AutomationID:  &a.ID,
		AllowMultiple: a.AllowMultiplePositions,
		Notional:      decimal.Zero,
		RequiredCash:  decimal.Zero,
	}

	if c := b.report.SelectedContract; c != nil {
		underlying := 0.0
		if variant.Side == model.SideShort && variant.ContractType == model.ContractCall {
			quote, err := d.fetcher.CachedUnderlyingQuote(ctx, a.Symbol, CodepathDiagnostics)
			if err != nil {
				b.fail(dto.CheckRisk, fmt.Sprintf("Underlying price unavailable for %s: %v", a.Symbol, err))
				return
			}
			underlying = quote.Value().InexactFloat64()
		}
		sizing := strategy.SizeOption(variant.Side, variant.ContractType, decimal.NewFromFloat(c.Mid()), c.Strike, underlying, a.Quantity, d.cfg.Engine.ContractMultiplier)
		proposed.Notional = sizing.Notional
		proposed.RequiredCash = sizing.RequiredCash
	}

	var reasons []string
	for _, denied := range d.risk.EvaluateAll(state, proposed) {
		// The existing position and max positions checks above already cover
		// the open positions limit.
		if denied.Check == RiskCheckOpenPositions {
			continue
		}
		reasons = append(reasons, denied.Reason)
	}
	if len(reasons) > 0 {
		b.fail(dto.CheckRisk, reasons...)
		return
	}
	b.pass(dto.CheckRisk, fmt.Sprintf("Within limits (notional $%s, balance $%s)", proposed.Notional.StringFixed(2), state.Balance.StringFixed(2)))
}

func (d *DiagnosticsEngine) store(report *dto.DiagnosticsReport) {
	d.reports.Set(report, report.AutomationID)
}

// Cached returns the last report produced for an automation.
func (d *DiagnosticsEngine) Cached(automationID uint) (*dto.DiagnosticsReport, bool) {
	return d.reports.Get(automationID)
}

// Annotate caches a copy of report with an execution reason appended. The
// report passed in may already be shared with readers and is left untouched.
func (d *DiagnosticsEngine) Annotate(report *dto.DiagnosticsReport, reason string) *dto.DiagnosticsReport {
	annotated := *report
	annotated.IsReady = false
	annotated.BlockingReasons = append(slices.Clone(report.BlockingReasons), reason)
	d.store(&annotated)
	return &annotated
}

func (d *DiagnosticsEngine) Forget(automationID uint) {
	d.reports.Delete(automationID)
}
