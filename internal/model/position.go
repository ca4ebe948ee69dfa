package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type InstrumentType string

const (
	InstrumentOption InstrumentType = "option"
	InstrumentStock  InstrumentType = "stock"
)

type ContractType string

const (
	ContractCall ContractType = "call"
	ContractPut  ContractType = "put"
)

type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

type PositionStatus string

const (
	PositionStatusCooldown PositionStatus = "cooldown"
	PositionStatusActive   PositionStatus = "active"
	PositionStatusClosed   PositionStatus = "closed"
)

const (
	ExitReasonProfitTarget = "profit_target"
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonMaxHold      = "max_days_to_hold"
	ExitReasonManual       = "manual"
)

type Position struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	AutomationID     *uint               `gorm:"index" json:"automation_id"`
	AccountID        uint                `gorm:"not null;index" json:"account_id"`
	Symbol           string              `gorm:"type:varchar(10);not null" json:"symbol"`
	InstrumentType   InstrumentType      `gorm:"type:varchar(16);not null" json:"instrument_type"`
	OptionSymbol     string              `gorm:"type:varchar(32)" json:"option_symbol,omitempty"`
	ContractType     ContractType        `gorm:"type:varchar(8)" json:"contract_type,omitempty"`
	Side             PositionSide        `gorm:"type:varchar(8);not null" json:"side"`
	Strike           decimal.NullDecimal `gorm:"type:numeric(18,4)" json:"strike"`
	Expiration       *time.Time          `gorm:"type:date" json:"expiration"`
	Quantity         int                 `gorm:"not null" json:"quantity"`
	EntryPrice       decimal.Decimal     `gorm:"type:numeric(18,4);not null" json:"entry_price"`
	CurrentPrice     decimal.NullDecimal `gorm:"type:numeric(18,4)" json:"current_price"`
	CollateralAmount decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0" json:"collateral_amount"`
	OpenedAt         time.Time           `gorm:"not null" json:"opened_at"`
	CooldownUntil    time.Time           `gorm:"not null" json:"cooldown_until"`
	Status           PositionStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	UnrealizedPnL    decimal.Decimal     `gorm:"column:unrealized_pnl;type:numeric(18,2);not null;default:0" json:"unrealized_pnl"`
	ClosedAt         *time.Time          `json:"closed_at"`
	ExitPrice        decimal.NullDecimal `gorm:"type:numeric(18,4)" json:"exit_price"`
	RealizedPnL      decimal.NullDecimal `gorm:"column:realized_pnl;type:numeric(18,2)" json:"realized_pnl"`
	ExitReason       string              `gorm:"type:varchar(32)" json:"exit_reason,omitempty"`
	LastRefreshedAt  *time.Time          `json:"last_refreshed_at"`
	EntrySignal      datatypes.JSON      `gorm:"type:jsonb" json:"entry_signal,omitempty"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

func (p *Position) IsOption() bool {
	return p.InstrumentType == InstrumentOption
}

func (p *Position) IsOpen() bool {
	return p.Status != PositionStatusClosed
}

func (p *Position) InCooldown(now time.Time) bool {
	return now.Before(p.CooldownUntil)
}

// Multiplier returns the number of underlying units per quantity.
func (p *Position) Multiplier(contractMultiplier int) decimal.Decimal {
	if p.IsOption() {
		return decimal.NewFromInt(int64(contractMultiplier))
	}
	return decimal.NewFromInt(1)
}

// PnL returns the profit or loss of the position at price.
func (p *Position) PnL(price decimal.Decimal, contractMultiplier int) decimal.Decimal {
	pnl := price.Sub(p.EntryPrice).Mul(decimal.NewFromInt(int64(p.Quantity))).Mul(p.Multiplier(contractMultiplier))
	if p.Side == SideShort {
		return pnl.Neg()
	}
	return pnl
}

// CapitalAtRisk is the cost basis of a long position or the collateral
// reserved for a short one.
func (p *Position) CapitalAtRisk(contractMultiplier int) decimal.Decimal {
	if p.Side == SideShort {
		return p.CollateralAmount
	}
	return p.EntryPrice.Mul(decimal.NewFromInt(int64(p.Quantity))).Mul(p.Multiplier(contractMultiplier))
}

type GetPositionsParam struct {
	IDs          []uint           `json:"ids"`
	AccountID    *uint            `json:"account_id"`
	AutomationID *uint            `json:"automation_id"`
	Statuses     []PositionStatus `json:"statuses"`
	OpenOnly     bool             `json:"open_only"`
}
