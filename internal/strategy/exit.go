package strategy

import (
	"time"

	"golang-options/internal/dto"
	"golang-options/internal/model"

	"github.com/shopspring/decimal"
)

// ReturnPct is the position's return at price in percent of the entry
// premium, positive when the position is winning for its side.
func ReturnPct(pos *model.Position, price decimal.Decimal) float64 {
	if pos.EntryPrice.IsZero() {
		return 0
	}
	pct, _ := price.Sub(pos.EntryPrice).Div(pos.EntryPrice).Mul(decimal.NewFromInt(100)).Float64()
	if pos.Side == model.SideShort {
		return -pct
	}
	return pct
}

// ExitReason evaluates profit target, stop loss and max days to hold in that
// order. An empty result means hold.
func ExitReason(a *model.Automation, pos *model.Position, price decimal.Decimal, now time.Time) string {
	ret := ReturnPct(pos, price)

	if a.ProfitTargetPct > 0 && ret >= a.ProfitTargetPct {
		return model.ExitReasonProfitTarget
	}
	if a.StopLossPct > 0 && ret <= -a.StopLossPct {
		return model.ExitReasonStopLoss
	}
	if a.MaxDaysToHold != nil && dto.DaysBetween(pos.OpenedAt, now) >= *a.MaxDaysToHold {
		return model.ExitReasonMaxHold
	}
	return ""
}
