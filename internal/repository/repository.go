package repository

import (
	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"

	"gorm.io/gorm"
)

type Repository struct {
	AutomationRepo     AutomationRepository
	PositionRepo       PositionRepository
	TradeRepo          TradeRepository
	AccountRepo        AccountRepository
	CycleHistoryRepo   CycleHistoryRepository
	PriceRejectionRepo PriceRejectionRepository
	UnitOfWork         UnitOfWork

	MarketDataRepo contract.MarketDataProvider
	OrderRepo      contract.OrderProvider
	MarketCalendar contract.MarketCalendar
}

// NewRepository wires the stores and the provider gateways. A nil db
// selects the in-memory store.
func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger, registry *metrics.Registry, clk clock.Clock) (*Repository, error) {
	var repo *Repository
	if db == nil {
		repo = NewMemoryRepository()
	} else {
		repo = &Repository{
			AutomationRepo:     NewAutomationRepository(db),
			PositionRepo:       NewPositionRepository(db),
			TradeRepo:          NewTradeRepository(db),
			AccountRepo:        NewAccountRepository(db),
			CycleHistoryRepo:   NewCycleHistoryRepository(db),
			PriceRejectionRepo: NewPriceRejectionRepository(db),
			UnitOfWork:         NewUnitOfWork(db),
		}
	}

	calendar, err := NewMarketCalendar(cfg.Market)
	if err != nil {
		return nil, err
	}

	marketData := NewTimeoutMarketData(NewMarketDataRepository(cfg, log, registry), cfg.Scheduler.ProviderTimeout)
	repo.MarketDataRepo = marketData
	repo.MarketCalendar = calendar
	repo.OrderRepo = NewTimeoutOrderProvider(NewPaperBroker(cfg, log, marketData, calendar, clk), cfg.Scheduler.ProviderTimeout)
	return repo, nil
}

// NewMemoryRepository returns stores backed by process memory. Provider
// fields are left for the caller to set.
func NewMemoryRepository() *Repository {
	db := newMemoryDB()
	return &Repository{
		AutomationRepo:     &memoryAutomationRepository{db: db},
		PositionRepo:       &memoryPositionRepository{db: db},
		TradeRepo:          &memoryTradeRepository{db: db},
		AccountRepo:        &memoryAccountRepository{db: db},
		CycleHistoryRepo:   &memoryCycleHistoryRepository{db: db},
		PriceRejectionRepo: &memoryPriceRejectionRepository{db: db},
		UnitOfWork:         &memoryUnitOfWork{db: db},
	}
}
