package service

import (
	"fmt"

	"golang-options/internal/dto"
	"golang-options/pkg/metrics"

	"github.com/shopspring/decimal"
)

const (
	RiskCheckFunds          = "sufficient_funds"
	RiskCheckPositionSize   = "max_position_size"
	RiskCheckOpenPositions  = "max_open_positions"
	RiskCheckDailyLoss      = "max_daily_loss"
	RiskCheckCapitalAtRisk  = "max_capital_at_risk"
	riskCheckBalancePresent = "positive_balance"
)

var hundred = decimal.NewFromInt(100)

type riskCheck struct {
	name string
	run  func(state dto.AccountState, trade dto.ProposedTrade) *dto.RiskDeniedError
}

// RiskManager approves or vetoes a proposed trade against an account's
// limits. A zero limit is treated as not configured.
type RiskManager struct {
	metrics *metrics.Registry
	checks  []riskCheck
}

func NewRiskManager(registry *metrics.Registry) *RiskManager {
	r := &RiskManager{metrics: registry}
	r.checks = []riskCheck{
		{name: RiskCheckFunds, run: checkFunds},
		{name: RiskCheckPositionSize, run: checkPositionSize},
		{name: RiskCheckOpenPositions, run: checkOpenPositions},
		{name: RiskCheckDailyLoss, run: checkDailyLoss},
		{name: RiskCheckCapitalAtRisk, run: checkCapitalAtRisk},
	}
	return r
}

// Authorize runs the checks in order and returns the first denial.
func (r *RiskManager) Authorize(state dto.AccountState, trade dto.ProposedTrade) error {
	for _, c := range r.checks {
		if denied := c.run(state, trade); denied != nil {
			r.count(denied)
			return denied
		}
	}
	return nil
}

// EvaluateAll returns every failing check, for diagnostics. It does not
// count denials.
func (r *RiskManager) EvaluateAll(state dto.AccountState, trade dto.ProposedTrade) []*dto.RiskDeniedError {
	var out []*dto.RiskDeniedError
	for _, c := range r.checks {
		if denied := c.run(state, trade); denied != nil {
			out = append(out, denied)
		}
	}
	return out
}

func (r *RiskManager) count(denied *dto.RiskDeniedError) {
	if r.metrics != nil {
		r.metrics.RiskDenials.WithLabelValues(denied.Check).Inc()
	}
}

func checkFunds(state dto.AccountState, trade dto.ProposedTrade) *dto.RiskDeniedError {
	if trade.RequiredCash.GreaterThan(state.Balance) {
		return dto.NewRiskDeniedError(RiskCheckFunds,
			fmt.Sprintf("Insufficient funds: requires $%s but balance is $%s",
				trade.RequiredCash.StringFixed(2), state.Balance.StringFixed(2)),
			dto.ErrInsufficientFunds)
	}
	return nil
}

func checkPositionSize(state dto.AccountState, trade dto.ProposedTrade) *dto.RiskDeniedError {
	limit := state.Limits.MaxPositionSizePct
	if limit <= 0 {
		return nil
	}
	if !state.Balance.IsPositive() {
		return nonPositiveBalance(state)
	}

	pct := percentOf(trade.Notional, state.Balance)
	if pct > limit {
		return dto.NewRiskDeniedError(RiskCheckPositionSize,
			fmt.Sprintf("Position size %.2f%% of balance exceeds max %.2f%%", pct, limit), nil)
	}
	return nil
}

func checkOpenPositions(state dto.AccountState, trade dto.ProposedTrade) *dto.RiskDeniedError {
	if trade.AutomationID != nil && !trade.AllowMultiple && state.AutomationOpenPositions > 0 {
		return dto.NewRiskDeniedError(RiskCheckOpenPositions,
			"Automation already holds an open position and multiple positions are disallowed", nil)
	}

	limit := state.Limits.MaxOpenPositions
	if limit > 0 && state.OpenPositions >= limit {
		return dto.NewRiskDeniedError(RiskCheckOpenPositions,
			fmt.Sprintf("Max open positions reached (%d/%d)", state.OpenPositions, limit), nil)
	}
	return nil
}

// checkDailyLoss measures today's realized and unrealized loss against the
// start-of-day balance.
func checkDailyLoss(state dto.AccountState, _ dto.ProposedTrade) *dto.RiskDeniedError {
	limit := state.Limits.MaxDailyLossPct
	if limit <= 0 {
		return nil
	}
	if !state.StartOfDayBalance.IsPositive() {
		return nil
	}

	loss := decimal.Max(decimal.Zero, state.RealizedPnLToday.Add(state.UnrealizedPnL).Neg())
	pct := percentOf(loss, state.StartOfDayBalance)
	if pct > limit {
		return dto.NewRiskDeniedError(RiskCheckDailyLoss,
			fmt.Sprintf("Daily loss %.2f%% of start-of-day balance exceeds max %.2f%%", pct, limit), nil)
	}
	return nil
}

func checkCapitalAtRisk(state dto.AccountState, trade dto.ProposedTrade) *dto.RiskDeniedError {
	limit := state.Limits.MaxCapitalAtRiskPct
	if limit <= 0 {
		return nil
	}
	if !state.Balance.IsPositive() {
		return nonPositiveBalance(state)
	}

	pct := percentOf(state.CapitalAtRisk.Add(trade.Notional), state.Balance)
	if pct > limit {
		return dto.NewRiskDeniedError(RiskCheckCapitalAtRisk,
			fmt.Sprintf("Capital at risk %.2f%% of balance would exceed max %.2f%%", pct, limit), nil)
	}
	return nil
}

func nonPositiveBalance(state dto.AccountState) *dto.RiskDeniedError {
	return dto.NewRiskDeniedError(riskCheckBalancePresent,
		fmt.Sprintf("Account balance $%s is not positive", state.Balance.StringFixed(2)), nil)
}

func percentOf(part, whole decimal.Decimal) float64 {
	pct, _ := part.Div(whole).Mul(hundred).Float64()
	return pct
}
