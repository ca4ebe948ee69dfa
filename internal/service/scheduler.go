package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
	"golang-options/pkg/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RunCycleNow(ctx context.Context) (*dto.CycleResult, error)
	TestTrade(ctx context.Context, automationID uint) (*dto.AutomationOutcome, error)
	Status(ctx context.Context) dto.EngineStatus
}

// AutomationRunner evaluates one automation inside a cycle.
type AutomationRunner interface {
	Run(ctx context.Context, a model.Automation, opts RunOptions) dto.AutomationOutcome
}

// EngineState is the scheduler's observable state. It is owned by the
// scheduler and read by the status endpoint.
type EngineState struct {
	mu              sync.RWMutex
	running         bool
	cycleInProgress bool
	cyclesCompleted int64
	lastCycleAt     *time.Time
	lastCycleID     string
}

func NewEngineState() *EngineState {
	return &EngineState{}
}

func (e *EngineState) setRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = running
}

func (e *EngineState) beginCycle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycleInProgress = true
}

func (e *EngineState) endCycle(cycleID string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycleInProgress = false
	e.cyclesCompleted++
	e.lastCycleAt = &at
	e.lastCycleID = cycleID
}

func (e *EngineState) snapshot() dto.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return dto.EngineStatus{
		Running:         e.running,
		CycleInProgress: e.cycleInProgress,
		CyclesCompleted: e.cyclesCompleted,
		LastCycleAt:     e.lastCycleAt,
		LastCycleID:     e.lastCycleID,
	}
}

// cronLogger routes robfig/cron's logging through zap.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, logger.Field("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, logger.ErrorField(err), logger.Field("details", keysAndValues))
}

type schedulerService struct {
	cfg      *config.Config
	log      *logger.Logger
	repo     *repository.Repository
	runner   AutomationRunner
	monitor  *PositionMonitor
	calendar contract.MarketCalendar
	clock    clock.Clock
	metrics  *metrics.Registry
	state    *EngineState

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID

	// cycleMu keeps cycles strictly sequential across triggers.
	cycleMu sync.Mutex
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	runner AutomationRunner,
	monitor *PositionMonitor,
	calendar contract.MarketCalendar,
	clk clock.Clock,
	registry *metrics.Registry,
	state *EngineState,
) *schedulerService {
	return &schedulerService{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		runner:   runner,
		monitor:  monitor,
		calendar: calendar,
		clock:    clk,
		metrics:  registry,
		state:    state,
	}
}

// Start schedules a cycle every configured interval. Calling it on a running
// scheduler is a no-op.
func (s *schedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	interval := s.cfg.Scheduler.CycleInterval
	if interval <= 0 {
		return fmt.Errorf("%w: cycle interval must be positive, got %s", dto.ErrInvalidInput, interval)
	}

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	entryID, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("schedule cycle: %w", err)
	}
	if _, err := c.AddFunc("@daily", func() { s.cleanup(ctx) }); err != nil {
		return fmt.Errorf("schedule history cleanup: %w", err)
	}

	c.Start()
	s.cron = c
	s.entryID = entryID
	s.state.setRunning(true)
	if s.metrics != nil {
		s.metrics.EngineRunning.Set(1)
	}

	s.log.InfoContext(ctx, "Engine started",
		logger.StringField("cycle_interval", interval.String()),
		logger.IntField("max_concurrency", s.cfg.Scheduler.MaxConcurrency))
	return nil
}

// Stop prevents new cycles and waits for a running one to finish or for ctx
// to expire.
func (s *schedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	stopped := c.Stop()
	s.state.setRunning(false)
	if s.metrics != nil {
		s.metrics.EngineRunning.Set(0)
	}

	select {
	case <-stopped.Done():
		s.log.InfoContext(ctx, "Engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine stop: %w", ctx.Err())
	}
}

func (s *schedulerService) Status(ctx context.Context) dto.EngineStatus {
	status := s.state.snapshot()

	status.MarketStatus = dto.MarketStatusClosed
	if s.calendar.IsMarketOpen(s.clock.Now()) {
		status.MarketStatus = dto.MarketStatusOpen
	}

	s.mu.Lock()
	if s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextCycleAt = &next
		}
	}
	s.mu.Unlock()
	return status
}

// RunCycleNow runs one cycle over every active automation regardless of
// market hours. Orders still need an open market.
func (s *schedulerService) RunCycleNow(ctx context.Context) (*dto.CycleResult, error) {
	automations, err := s.activeAutomations(ctx)
	if err != nil {
		return nil, err
	}
	return s.runCycle(ctx, model.CycleTriggerManual, automations, false)
}

// TestTrade runs a single automation with relaxed confidence and liquidity
// thresholds.
func (s *schedulerService) TestTrade(ctx context.Context, automationID uint) (*dto.AutomationOutcome, error) {
	a, err := s.repo.AutomationRepo.FindByID(ctx, automationID)
	if err != nil {
		return nil, err
	}

	result, err := s.runCycle(ctx, model.CycleTriggerTestTrade, []model.Automation{*a}, true)
	if err != nil {
		return nil, err
	}
	return &result.Outcomes[0], nil
}

func (s *schedulerService) tick(ctx context.Context) {
	if !utils.ShouldContinue(ctx, s.log) {
		return
	}
	if !s.calendar.IsMarketOpen(s.clock.Now()) {
		s.log.DebugContext(ctx, "Market closed, engine idle")
		if s.metrics != nil {
			s.metrics.CyclesTotal.WithLabelValues(string(model.CycleTriggerSchedule), string(model.CycleStatusSkipped)).Inc()
		}
		return
	}

	automations, err := s.activeAutomations(ctx)
	if err != nil {
		s.log.ErrorContextWithAlert(ctx, "Failed to load automations", logger.ErrorField(err))
		return
	}
	if _, err := s.runCycle(ctx, model.CycleTriggerSchedule, automations, false); err != nil {
		s.log.ErrorContextWithAlert(ctx, "Cycle failed", logger.ErrorField(err))
	}
}

func (s *schedulerService) activeAutomations(ctx context.Context) ([]model.Automation, error) {
	automations, err := s.repo.AutomationRepo.Get(ctx, model.GetAutomationsParam{IsActive: utils.ToPointer(true)})
	if err != nil {
		return nil, fmt.Errorf("load active automations: %w", err)
	}
	return automations, nil
}

func (s *schedulerService) runCycle(ctx context.Context, trigger model.CycleTrigger, automations []model.Automation, testTrade bool) (*dto.CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	started := s.clock.Now()
	cycleID := uuid.NewString()
	log := s.log.With(logger.CycleField(cycleID), logger.StringField("trigger", string(trigger)))
	ctx = logger.NewContext(ctx, log)

	s.state.beginCycle()
	result := &dto.CycleResult{
		CycleID:    cycleID,
		Trigger:    string(trigger),
		MarketOpen: s.calendar.IsMarketOpen(started),
		StartedAt:  started,
		Outcomes:   make([]dto.AutomationOutcome, len(automations)),
	}

	history := &model.CycleHistory{
		CycleID:    cycleID,
		Trigger:    trigger,
		Status:     model.CycleStatusRunning,
		MarketOpen: result.MarketOpen,
		StartedAt:  started,
	}
	if err := s.repo.CycleHistoryRepo.Create(ctx, history); err != nil {
		log.ErrorContext(ctx, "Failed to create cycle history", logger.ErrorField(err))
	}

	log.InfoContext(ctx, "Cycle started", logger.IntField("automations", len(automations)))

	concurrency := s.cfg.Scheduler.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, a := range automations {
		g.Go(func() error {
			err := utils.SafeCall(func() error {
				result.Outcomes[i] = s.runner.Run(ctx, a, RunOptions{CycleID: cycleID, TestTrade: testTrade})
				return nil
			})
			if err != nil {
				log.ErrorContextWithAlert(ctx, "Automation run panicked",
					logger.AutomationField(a.ID),
					logger.ErrorField(err))
				result.Outcomes[i] = dto.AutomationOutcome{
					AutomationID: a.ID,
					Outcome:      dto.OutcomeFailed,
					Message:      strings.SplitN(err.Error(), "\n", 2)[0],
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var unattended MonitorResult
	if trigger != model.CycleTriggerTestTrade {
		unattended = s.monitorUnattended(ctx, automations)
	}

	finished := s.clock.Now()
	result.FinishedAt = finished

	history.Status = model.CycleStatusCompleted
	history.CompletedAt.Time, history.CompletedAt.Valid = finished, true
	history.AutomationsEvaluated = len(automations)
	history.PositionsClosed = unattended.Closed
	for _, o := range result.Outcomes {
		switch o.Outcome {
		case dto.OutcomeOpened:
			history.PositionsOpened++
		case dto.OutcomeFailed:
			history.Failures++
		}
		history.PositionsClosed += o.PositionsClosed
	}
	if output, err := json.Marshal(result.Outcomes); err == nil {
		history.Output = output
	}
	if history.ID != 0 {
		if err := s.repo.CycleHistoryRepo.Update(context.WithoutCancel(ctx), history); err != nil {
			log.ErrorContext(ctx, "Failed to update cycle history", logger.ErrorField(err))
		}
	}

	s.state.endCycle(cycleID, finished)
	if s.metrics != nil {
		s.metrics.CyclesTotal.WithLabelValues(string(trigger), string(history.Status)).Inc()
		s.metrics.CycleDuration.Observe(finished.Sub(started).Seconds())
	}

	log.InfoContext(ctx, "Cycle completed",
		logger.IntField("automations", history.AutomationsEvaluated),
		logger.IntField("opened", history.PositionsOpened),
		logger.IntField("closed", history.PositionsClosed),
		logger.IntField("failures", history.Failures),
		logger.StringField("duration", finished.Sub(started).String()))
	return result, nil
}

// monitorUnattended refreshes positions no pipeline looked at this cycle:
// manual positions and those of inactive automations.
func (s *schedulerService) monitorUnattended(ctx context.Context, covered []model.Automation) MonitorResult {
	var result MonitorResult

	positions, err := s.repo.PositionRepo.Get(ctx, model.GetPositionsParam{OpenOnly: true})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to load open positions", logger.ErrorField(err))
		return result
	}

	seen := make(map[uint]bool, len(covered))
	for _, a := range covered {
		seen[a.ID] = true
	}

	var manual []model.Position
	byAutomation := make(map[uint][]model.Position)
	for _, p := range positions {
		switch {
		case p.AutomationID == nil:
			manual = append(manual, p)
		case !seen[*p.AutomationID]:
			byAutomation[*p.AutomationID] = append(byAutomation[*p.AutomationID], p)
		}
	}

	if len(manual) > 0 {
		result.merge(s.monitor.Monitor(ctx, nil, manual))
	}
	for id, list := range byAutomation {
		a, err := s.repo.AutomationRepo.FindByID(ctx, id)
		if err != nil {
			s.log.WarnContext(ctx, "Automation of open positions not found, refreshing only",
				logger.AutomationField(id), logger.ErrorField(err))
			result.merge(s.monitor.Monitor(ctx, nil, list))
			continue
		}
		result.merge(s.monitor.Monitor(ctx, a, list))
	}
	return result
}

func (s *schedulerService) cleanup(ctx context.Context) {
	retention := s.cfg.Scheduler.HistoryRetention
	if retention <= 0 {
		return
	}
	deleted, err := s.repo.CycleHistoryRepo.DeleteOlderThan(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to clean up cycle history", logger.ErrorField(err))
		return
	}
	s.log.InfoContext(ctx, "Cycle history cleaned up", logger.Field("deleted", deleted))
}
