package model

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

type StrategyType string

const (
	StrategyLongCall       StrategyType = "long_call"
	StrategyLongPut        StrategyType = "long_put"
	StrategyCoveredCall    StrategyType = "covered_call"
	StrategyCashSecuredPut StrategyType = "cash_secured_put"
)

const MaxLeapsDTE = 1095

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// IsValidTicker reports whether symbol is a plain 1 to 5 letter equity ticker.
func IsValidTicker(symbol string) bool {
	return tickerPattern.MatchString(symbol)
}

type Automation struct {
	ID                     uint         `gorm:"primaryKey" json:"id"`
	Name                   string       `gorm:"type:varchar(255);not null" json:"name"`
	AccountID              uint         `gorm:"not null;index" json:"account_id"`
	Symbol                 string       `gorm:"type:varchar(10);not null" json:"symbol"`
	StrategyType           StrategyType `gorm:"type:varchar(32);not null" json:"strategy_type"`
	MinConfidence          float64      `gorm:"not null" json:"min_confidence"`
	Quantity               int          `gorm:"not null;default:1" json:"quantity"`
	ProfitTargetPct        float64      `gorm:"not null" json:"profit_target_pct"`
	StopLossPct            float64      `gorm:"not null" json:"stop_loss_pct"`
	MaxDaysToHold          *int         `json:"max_days_to_hold"`
	PreferredDTE           int          `gorm:"column:preferred_dte;not null" json:"preferred_dte"`
	MinDTE                 int          `gorm:"column:min_dte;not null" json:"min_dte"`
	MaxDTE                 int          `gorm:"column:max_dte;not null" json:"max_dte"`
	TargetDelta            *float64     `json:"target_delta"`
	MinDelta               *float64     `json:"min_delta"`
	MaxDelta               *float64     `json:"max_delta"`
	AllowMultiplePositions bool         `gorm:"not null;default:false" json:"allow_multiple_positions"`
	IsActive               bool         `gorm:"not null;default:true" json:"is_active"`
	ConsecutiveFailures    int          `gorm:"not null;default:0" json:"consecutive_failures"`
	LastError              *string      `gorm:"type:text" json:"last_error"`
	LastEvaluatedAt        *time.Time   `json:"last_evaluated_at"`
	CreatedAt              time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Automation) TableName() string {
	return "automations"
}

// Validate checks the structural invariants of an automation.
func (a *Automation) Validate() error {
	var errs []error

	if !IsValidTicker(a.Symbol) {
		errs = append(errs, fmt.Errorf("symbol %q must be 1-5 uppercase letters", a.Symbol))
	}
	switch a.StrategyType {
	case StrategyLongCall, StrategyLongPut, StrategyCoveredCall, StrategyCashSecuredPut:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy type %q", a.StrategyType))
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min confidence %.2f must be within [0,1]", a.MinConfidence))
	}
	if a.Quantity < 1 {
		errs = append(errs, fmt.Errorf("quantity must be at least 1"))
	}
	if a.ProfitTargetPct < 0 || a.StopLossPct < 0 {
		errs = append(errs, fmt.Errorf("profit target and stop loss must not be negative"))
	}
	if a.MaxDaysToHold != nil && *a.MaxDaysToHold < 1 {
		errs = append(errs, fmt.Errorf("max days to hold must be at least 1 when set"))
	}
	if a.MinDTE < 0 || a.MaxDTE > MaxLeapsDTE || a.MinDTE > a.PreferredDTE || a.PreferredDTE > a.MaxDTE {
		errs = append(errs, fmt.Errorf("DTE window must satisfy 0 <= min (%d) <= preferred (%d) <= max (%d) <= %d",
			a.MinDTE, a.PreferredDTE, a.MaxDTE, MaxLeapsDTE))
	}
	for name, d := range map[string]*float64{"target": a.TargetDelta, "min": a.MinDelta, "max": a.MaxDelta} {
		if d != nil && (*d < -1 || *d > 1) {
			errs = append(errs, fmt.Errorf("%s delta %.2f must be within [-1,1]", name, *d))
		}
	}
	if a.MinDelta != nil && a.MaxDelta != nil && *a.MinDelta > *a.MaxDelta {
		errs = append(errs, fmt.Errorf("min delta must not exceed max delta"))
	}
	if a.TargetDelta != nil && a.MinDelta != nil && *a.TargetDelta < *a.MinDelta {
		errs = append(errs, fmt.Errorf("target delta must not be below min delta"))
	}
	if a.TargetDelta != nil && a.MaxDelta != nil && *a.TargetDelta > *a.MaxDelta {
		errs = append(errs, fmt.Errorf("target delta must not exceed max delta"))
	}

	return errors.Join(errs...)
}

type GetAutomationsParam struct {
	IDs       []uint `json:"ids"`
	AccountID *uint  `json:"account_id"`
	IsActive  *bool  `json:"is_active"`
}
