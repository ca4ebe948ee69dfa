package dto

import (
	"time"

	"golang-options/internal/model"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

type OrderRequest struct {
	ClientOrderID  string               `json:"client_order_id"`
	AccountID      uint                 `json:"account_id"`
	Symbol         string               `json:"symbol"`
	InstrumentType model.InstrumentType `json:"instrument_type"`
	Option         *OptionSpec          `json:"option,omitempty"`
	Action         model.TradeAction    `json:"action"`
	Quantity       int                  `json:"quantity"`
	ReferencePrice decimal.Decimal      `json:"reference_price"`
}

// OrderResult is the provider's answer. A rejected order comes back with
// Status rejected and a nil error.
type OrderResult struct {
	OrderID        string      `json:"order_id"`
	Status         OrderStatus `json:"status"`
	FillPrice      float64     `json:"fill_price"`
	FilledQuantity int         `json:"filled_quantity"`
	Reason         string      `json:"reason,omitempty"`
	FilledAt       time.Time   `json:"filled_at"`
}

// OpenRequest describes a new position. Option is nil for stock positions.
type OpenRequest struct {
	AccountID    uint               `json:"account_id"`
	AutomationID *uint              `json:"automation_id,omitempty"`
	Symbol       string             `json:"symbol"`
	Option       *OptionSpec        `json:"option,omitempty"`
	Side         model.PositionSide `json:"side"`
	Quantity     int                `json:"quantity"`
	Source       model.TradeSource  `json:"source"`
	Signal       *Signal            `json:"signal,omitempty"`

	// AllowMultiple mirrors the automation setting for risk check (c).
	AllowMultiple bool `json:"allow_multiple"`
}

type Fill struct {
	PositionID   uint                `json:"position_id"`
	TradeID      uint                `json:"trade_id"`
	OrderID      string              `json:"order_id"`
	Symbol       string              `json:"symbol"`
	OptionSymbol string              `json:"option_symbol,omitempty"`
	Action       model.TradeAction   `json:"action"`
	Quantity     int                 `json:"quantity"`
	Price        decimal.Decimal     `json:"price"`
	CashDelta    decimal.Decimal     `json:"cash_delta"`
	Balance      decimal.Decimal     `json:"balance"`
	RealizedPnL  decimal.NullDecimal `json:"realized_pnl"`
	ExitReason   string              `json:"exit_reason,omitempty"`
	ExecutedAt   time.Time           `json:"executed_at"`
}

// ProposedTrade is what the risk manager is asked to approve.
type ProposedTrade struct {
	AutomationID  *uint           `json:"automation_id,omitempty"`
	AllowMultiple bool            `json:"allow_multiple"`
	Notional      decimal.Decimal `json:"notional"`
	RequiredCash  decimal.Decimal `json:"required_cash"`
}

// AccountState is the risk manager's view of one account.
type AccountState struct {
	AccountID               uint             `json:"account_id"`
	Balance                 decimal.Decimal  `json:"balance"`
	StartOfDayBalance       decimal.Decimal  `json:"start_of_day_balance"`
	RealizedPnLToday        decimal.Decimal  `json:"realized_pnl_today"`
	UnrealizedPnL           decimal.Decimal  `json:"unrealized_pnl"`
	CapitalAtRisk           decimal.Decimal  `json:"capital_at_risk"`
	OpenPositions           int              `json:"open_positions"`
	AutomationOpenPositions int              `json:"automation_open_positions"`
	Limits                  model.RiskLimits `json:"limits"`
}
