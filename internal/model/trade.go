package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

type TradeSource string

const (
	TradeSourceManual     TradeSource = "manual"
	TradeSourceAutomation TradeSource = "automation"
)

// Trade is an insert-only ledger row.
type Trade struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	PositionID  uint                `gorm:"not null;index" json:"position_id"`
	AccountID   uint                `gorm:"not null;index" json:"account_id"`
	Action      TradeAction         `gorm:"type:varchar(8);not null" json:"action"`
	Price       decimal.Decimal     `gorm:"type:numeric(18,4);not null" json:"price"`
	Quantity    int                 `gorm:"not null" json:"quantity"`
	ExecutedAt  time.Time           `gorm:"not null;index" json:"executed_at"`
	Source      TradeSource         `gorm:"type:varchar(16);not null" json:"source"`
	RealizedPnL decimal.NullDecimal `gorm:"column:realized_pnl;type:numeric(18,2)" json:"realized_pnl"`
	OrderID     string              `gorm:"type:varchar(64)" json:"order_id"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}
