package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLimits are percentages in percent units (5 means 5%). Zero means the
// limit is not configured.
type RiskLimits struct {
	MaxDailyLossPct     float64 `gorm:"not null;default:0" json:"max_daily_loss_pct"`
	MaxPositionSizePct  float64 `gorm:"not null;default:0" json:"max_position_size_pct"`
	MaxOpenPositions    int     `gorm:"not null;default:0" json:"max_open_positions"`
	MaxCapitalAtRiskPct float64 `gorm:"not null;default:0" json:"max_capital_at_risk_pct"`
}

type Account struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Balance           decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance"`
	StartOfDayBalance decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"start_of_day_balance"`
	StartOfDayDate    time.Time       `gorm:"type:date;not null" json:"start_of_day_date"`
	RiskLimits        RiskLimits      `gorm:"embedded" json:"risk_limits"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// RollStartOfDay moves the start-of-day snapshot to today's date when the
// stored one is older. It reports whether the account changed.
func (a *Account) RollStartOfDay(today time.Time) bool {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if !a.StartOfDayDate.Before(day) {
		return false
	}
	a.StartOfDayDate = day
	a.StartOfDayBalance = a.Balance
	return true
}
