package service

import (
	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/repository"
	"golang-options/pkg/cache"
	"golang-options/pkg/clock"
	"golang-options/pkg/keylock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
)

type Service struct {
	AutomationService AutomationService
	PositionService   PositionService
	AccountService    AccountService
	SchedulerService  SchedulerService

	Coordinator *OrderCoordinator
	Diagnostics *DiagnosticsEngine
	Pipeline    *Pipeline
	EngineState *EngineState
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	registry *metrics.Registry,
	clk clock.Clock,
	notifier contract.Notifier,
) *Service {
	locks := keylock.New()
	quotes := newUnderlyingQuotes(inmemoryCache, repo.MarketDataRepo, cfg.Provider.QuoteCacheTTL)

	guard := NewPriceGuard(cfg.PriceGuard, log, repo.PriceRejectionRepo, registry, quotes, clk)
	fetcher := NewPremiumFetcher(log, repo.MarketDataRepo, guard, quotes, clk)
	risk := NewRiskManager(registry)
	coordinator := NewOrderCoordinator(cfg, log, repo, fetcher, risk, locks, clk, registry, notifier)

	signals := NewSignalEvaluator(log, repo.MarketDataRepo, clk)
	selector := NewOptionSelector()
	diagnostics := NewDiagnosticsEngine(cfg, log, signals, repo.MarketDataRepo, selector, coordinator, risk, fetcher, inmemoryCache, clk)

	monitor := NewPositionMonitor(cfg, log, repo.PositionRepo, fetcher, coordinator, locks, clk)
	pipeline := NewPipeline(cfg, log, repo, diagnostics, coordinator, monitor, repo.MarketCalendar, clk, registry)

	state := NewEngineState()
	schedulerService := NewSchedulerService(cfg, log, repo, pipeline, monitor, repo.MarketCalendar, clk, registry, state)

	return &Service{
		AutomationService: NewAutomationService(cfg, log, repo, diagnostics),
		PositionService:   NewPositionService(cfg, log, repo, coordinator),
		AccountService:    NewAccountService(cfg, log, repo, coordinator, clk),
		SchedulerService:  schedulerService,
		Coordinator:       coordinator,
		Diagnostics:       diagnostics,
		Pipeline:          pipeline,
		EngineState:       state,
	}
}
