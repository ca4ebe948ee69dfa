package service

import (
	"context"
	"errors"
	"fmt"

	"golang-options/config"
	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/internal/repository"
	"golang-options/internal/strategy"
	"golang-options/pkg/clock"
	"golang-options/pkg/common"
	"golang-options/pkg/keylock"
	"golang-options/pkg/logger"

	"github.com/shopspring/decimal"
)

// MonitorResult tallies one monitoring pass.
type MonitorResult struct {
	Refreshed int
	Activated int
	Closed    int
	Skipped   int
	Errors    []error
}

func (r *MonitorResult) merge(o MonitorResult) {
	r.Refreshed += o.Refreshed
	r.Activated += o.Activated
	r.Closed += o.Closed
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// PositionMonitor refreshes open positions and closes the ones whose exit
// rules fire. Positions inside their cooldown window are left untouched.
type PositionMonitor struct {
	cfg       *config.Config
	log       *logger.Logger
	positions repository.PositionRepository
	fetcher   *PremiumFetcher
	closer    contract.PositionCloser
	locks     *keylock.KeyLock
	clock     clock.Clock
}

func NewPositionMonitor(cfg *config.Config, log *logger.Logger, positions repository.PositionRepository, fetcher *PremiumFetcher, closer contract.PositionCloser, locks *keylock.KeyLock, clk clock.Clock) *PositionMonitor {
	return &PositionMonitor{
		cfg:       cfg,
		log:       log,
		positions: positions,
		fetcher:   fetcher,
		closer:    closer,
		locks:     locks,
		clock:     clk,
	}
}

// Monitor walks positions. A nil automation marks manual positions, which
// are refreshed but never closed automatically.
func (m *PositionMonitor) Monitor(ctx context.Context, automation *model.Automation, positions []model.Position) MonitorResult {
	var result MonitorResult
	for i := range positions {
		if ctx.Err() != nil {
			break
		}
		pos := positions[i]
		if !pos.IsOpen() {
			continue
		}
		if pos.InCooldown(m.clock.Now()) {
			result.Skipped++
			continue
		}

		refreshed, activated, err := m.refresh(ctx, pos.ID)
		if activated {
			result.Activated++
		}
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if refreshed == nil {
			continue
		}
		result.Refreshed++

		if automation == nil || !refreshed.CurrentPrice.Valid {
			continue
		}
		reason := strategy.ExitReason(automation, refreshed, refreshed.CurrentPrice.Decimal, m.clock.Now())
		if reason == "" {
			continue
		}

		m.log.InfoContext(ctx, "Exit rule triggered",
			logger.PositionField(refreshed.ID),
			logger.StringField("reason", reason),
			logger.StringField("price", refreshed.CurrentPrice.Decimal.String()))

		if _, err := m.closer.Close(ctx, refreshed.ID, reason, model.TradeSourceAutomation); err != nil {
			if errors.Is(err, dto.ErrPositionClosed) {
				continue
			}
			m.log.WarnContext(ctx, "Exit failed, will retry next cycle",
				logger.PositionField(refreshed.ID),
				logger.ErrorField(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Closed++
	}
	return result
}

// refresh reloads the position under its lock, promotes it out of cooldown
// and stores a fresh price. It returns nil when the position closed in the
// meantime or could not be priced.
func (m *PositionMonitor) refresh(ctx context.Context, positionID uint) (*model.Position, bool, error) {
	unlock := m.locks.Lock(fmt.Sprintf(common.LOCK_POSITION, positionID))
	defer unlock()

	pos, err := m.positions.FindByID(ctx, positionID)
	if err != nil {
		return nil, false, err
	}
	now := m.clock.Now()
	if !pos.IsOpen() || pos.InCooldown(now) {
		return nil, false, nil
	}

	activated := false
	if pos.Status == model.PositionStatusCooldown {
		pos.Status = model.PositionStatusActive
		activated = true
	}

	price, priceErr := m.price(ctx, pos)
	if priceErr == nil {
		pos.CurrentPrice = decimal.NewNullDecimal(price)
		pos.UnrealizedPnL = pos.PnL(price, m.cfg.Engine.ContractMultiplier).Round(2)
		pos.LastRefreshedAt = &now
	}
	if priceErr != nil && !activated {
		return nil, false, priceErr
	}

	ok, err := m.positions.UpdateIfOpen(ctx, pos)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if activated {
		m.log.DebugContext(ctx, "Position left cooldown", logger.PositionField(pos.ID))
	}
	if priceErr != nil {
		return nil, activated, priceErr
	}
	return pos, activated, nil
}

func (m *PositionMonitor) price(ctx context.Context, pos *model.Position) (decimal.Decimal, error) {
	if pos.IsOption() {
		premium, err := m.fetcher.FetchFreshPremium(ctx, positionSpec(pos), CodepathMonitorRefresh)
		if err != nil {
			return decimal.Zero, err
		}
		return premium.Value(), nil
	}
	quote, err := m.fetcher.CachedUnderlyingQuote(ctx, pos.Symbol, CodepathMonitorRefresh)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Value(), nil
}
