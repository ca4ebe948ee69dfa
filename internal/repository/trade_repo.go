package repository

import (
	"context"
	"time"

	"golang-options/internal/model"
	"golang-options/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TradeRepository interface {
	Create(ctx context.Context, trade *model.Trade, opts ...utils.DBOption) error
	ListByPosition(ctx context.Context, positionID uint, opts ...utils.DBOption) ([]model.Trade, error)
	SumRealizedPnLSince(ctx context.Context, accountID uint, since time.Time, opts ...utils.DBOption) (decimal.Decimal, error)
}

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Create(ctx context.Context, trade *model.Trade, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(trade).Error
}

func (r *tradeRepository) ListByPosition(ctx context.Context, positionID uint, opts ...utils.DBOption) ([]model.Trade, error) {
	var trades []model.Trade
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("position_id = ?", positionID).
		Order("executed_at ASC").
		Find(&trades).Error
	return trades, err
}

func (r *tradeRepository) SumRealizedPnLSince(ctx context.Context, accountID uint, since time.Time, opts ...utils.DBOption) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.Trade{}).
		Select("SUM(realized_pnl)").
		Where("account_id = ? AND executed_at >= ? AND realized_pnl IS NOT NULL", accountID, since).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
