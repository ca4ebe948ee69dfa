package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-options/config"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"

	"github.com/shopspring/decimal"
)

type AccountService interface {
	Get(ctx context.Context, id uint) (*model.Account, error)
	State(ctx context.Context, id uint) (dto.AccountState, error)
	EnsureDefault(ctx context.Context) (*model.Account, error)
}

type accountService struct {
	cfg         *config.Config
	log         *logger.Logger
	repo        *repository.Repository
	coordinator *OrderCoordinator
	clock       clock.Clock
}

func NewAccountService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, coordinator *OrderCoordinator, clk clock.Clock) *accountService {
	return &accountService{
		cfg:         cfg,
		log:         log,
		repo:        repo,
		coordinator: coordinator,
		clock:       clk,
	}
}

func (s *accountService) Get(ctx context.Context, id uint) (*model.Account, error) {
	return s.repo.AccountRepo.FindByID(ctx, id)
}

func (s *accountService) State(ctx context.Context, id uint) (dto.AccountState, error) {
	return s.coordinator.AccountState(ctx, id, nil)
}

// EnsureDefault creates the default paper account with the seed balance when
// it does not exist yet.
func (s *accountService) EnsureDefault(ctx context.Context) (*model.Account, error) {
	id := s.cfg.Engine.DefaultAccountID
	acc, err := s.repo.AccountRepo.FindByID(ctx, id)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, dto.ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	seed := decimal.NewFromFloat(s.cfg.Store.SeedAccountBalance).Round(2)
	acc = &model.Account{
		ID:                id,
		Name:              "paper",
		Balance:           seed,
		StartOfDayBalance: seed,
		StartOfDayDate:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if err := s.repo.AccountRepo.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("seed account %d: %w", id, err)
	}
	s.log.InfoContext(ctx, "Default account created",
		logger.AccountField(id),
		logger.DecimalField("balance", seed))
	return acc, nil
}
