package service

import (
	"context"
	"fmt"

	"golang-options/config"
	"golang-options/internal/dto"
	"golang-options/internal/helper"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/pkg/logger"
)

type PositionService interface {
	List(ctx context.Context, query dto.ListPositionsQuery) ([]model.Position, error)
	Open(ctx context.Context, req dto.OpenPositionRequest) (*dto.Fill, error)
	Close(ctx context.Context, id uint, reason string) (*dto.Fill, error)
	Trades(ctx context.Context, id uint) ([]model.Trade, error)
}

type positionService struct {
	cfg         *config.Config
	log         *logger.Logger
	repo        *repository.Repository
	coordinator *OrderCoordinator
}

func NewPositionService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, coordinator *OrderCoordinator) *positionService {
	return &positionService{
		cfg:         cfg,
		log:         log,
		repo:        repo,
		coordinator: coordinator,
	}
}

func (s *positionService) List(ctx context.Context, query dto.ListPositionsQuery) ([]model.Position, error) {
	param := model.GetPositionsParam{}
	if query.AccountID != 0 {
		param.AccountID = &query.AccountID
	}
	if query.AutomationID != 0 {
		param.AutomationID = &query.AutomationID
	}
	switch query.Status {
	case "":
	case "open":
		param.OpenOnly = true
	default:
		param.Statuses = []model.PositionStatus{model.PositionStatus(query.Status)}
	}
	return s.repo.PositionRepo.Get(ctx, param)
}

// Open places a manual position. An option symbol selects an option
// position on that contract; otherwise shares are bought.
func (s *positionService) Open(ctx context.Context, req dto.OpenPositionRequest) (*dto.Fill, error) {
	open := dto.OpenRequest{
		AccountID: req.AccountID,
		Symbol:    req.Symbol,
		Side:      model.SideLong,
		Quantity:  req.Quantity,
		Source:    model.TradeSourceManual,
	}
	if open.AccountID == 0 {
		open.AccountID = s.cfg.Engine.DefaultAccountID
	}
	if req.Side != "" {
		open.Side = model.PositionSide(req.Side)
	}
	if req.OptionSymbol != "" {
		spec, err := helper.ParseOCCSymbol(req.OptionSymbol)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dto.ErrInvalidInput, err)
		}
		open.Option = &spec
	}
	return s.coordinator.Open(ctx, open)
}

func (s *positionService) Close(ctx context.Context, id uint, reason string) (*dto.Fill, error) {
	if reason == "" {
		reason = model.ExitReasonManual
	}
	return s.coordinator.Close(ctx, id, reason, model.TradeSourceManual)
}

func (s *positionService) Trades(ctx context.Context, id uint) ([]model.Trade, error) {
	if _, err := s.repo.PositionRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.TradeRepo.ListByPosition(ctx, id)
}
