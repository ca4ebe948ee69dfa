package service

import (
	"context"
	"errors"
	"fmt"

	"golang-options/config"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/pkg/logger"
)

type AutomationService interface {
	List(ctx context.Context, param model.GetAutomationsParam) ([]model.Automation, error)
	Get(ctx context.Context, id uint) (*model.Automation, error)
	Create(ctx context.Context, req dto.CreateAutomationRequest) (*model.Automation, error)
	Update(ctx context.Context, id uint, req dto.UpdateAutomationRequest) (*model.Automation, error)
	Toggle(ctx context.Context, id uint) (*model.Automation, error)
	Diagnostics(ctx context.Context, id uint) (*dto.DiagnosticsReport, error)
}

type automationService struct {
	cfg         *config.Config
	log         *logger.Logger
	repo        *repository.Repository
	diagnostics *DiagnosticsEngine
}

func NewAutomationService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, diagnostics *DiagnosticsEngine) *automationService {
	return &automationService{
		cfg:         cfg,
		log:         log,
		repo:        repo,
		diagnostics: diagnostics,
	}
}

func (s *automationService) List(ctx context.Context, param model.GetAutomationsParam) ([]model.Automation, error) {
	return s.repo.AutomationRepo.Get(ctx, param)
}

func (s *automationService) Get(ctx context.Context, id uint) (*model.Automation, error) {
	return s.repo.AutomationRepo.FindByID(ctx, id)
}

func (s *automationService) Create(ctx context.Context, req dto.CreateAutomationRequest) (*model.Automation, error) {
	a := req.ToModel(s.cfg.Engine.DefaultAccountID)
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInvalidInput, err)
	}
	if _, err := s.repo.AccountRepo.FindByID(ctx, a.AccountID); err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %d does not exist", dto.ErrInvalidInput, a.AccountID)
		}
		return nil, err
	}

	if err := s.repo.AutomationRepo.Create(ctx, &a); err != nil {
		s.log.ErrorContext(ctx, "Failed to create automation", logger.ErrorField(err))
		return nil, fmt.Errorf("create automation: %w", err)
	}
	s.log.InfoContext(ctx, "Automation created",
		logger.AutomationField(a.ID),
		logger.StringField("symbol", a.Symbol),
		logger.StringField("strategy_type", string(a.StrategyType)))
	return &a, nil
}

// Update applies a partial edit. Editing clears the execution failure
// counter so a blocked automation gets a fresh set of retries.
func (s *automationService) Update(ctx context.Context, id uint, req dto.UpdateAutomationRequest) (*model.Automation, error) {
	a, err := s.repo.AutomationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(a)
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInvalidInput, err)
	}
	resetFailures(a)

	if err := s.repo.AutomationRepo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update automation %d: %w", id, err)
	}
	s.diagnostics.Forget(id)
	s.log.InfoContext(ctx, "Automation updated", logger.AutomationField(id))
	return a, nil
}

func (s *automationService) Toggle(ctx context.Context, id uint) (*model.Automation, error) {
	a, err := s.repo.AutomationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.IsActive = !a.IsActive
	resetFailures(a)
	if err := s.repo.AutomationRepo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("toggle automation %d: %w", id, err)
	}
	s.diagnostics.Forget(id)
	s.log.InfoContext(ctx, "Automation toggled",
		logger.AutomationField(id),
		logger.BoolField("is_active", a.IsActive))
	return a, nil
}

// Diagnostics returns the report cached by the last cycle, or a fresh one
// when none is cached.
func (s *automationService) Diagnostics(ctx context.Context, id uint) (*dto.DiagnosticsReport, error) {
	if report, ok := s.diagnostics.Cached(id); ok {
		return report, nil
	}

	a, err := s.repo.AutomationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.diagnostics.Explain(ctx, a, dto.DiagnosticsOptions{})
}

func resetFailures(a *model.Automation) {
	a.ConsecutiveFailures = 0
	a.LastError = nil
}
