package strategy

import (
	"fmt"

	"golang-options/internal/dto"
	"golang-options/internal/model"

	"github.com/shopspring/decimal"
)

// Variant is the behaviour attached to one strategy type. The set is closed;
// For is the only constructor.
type Variant struct {
	Type         model.StrategyType
	ContractType model.ContractType
	Side         model.PositionSide
}

func For(t model.StrategyType) (Variant, error) {
	switch t {
	case model.StrategyLongCall:
		return Variant{Type: t, ContractType: model.ContractCall, Side: model.SideLong}, nil
	case model.StrategyLongPut:
		return Variant{Type: t, ContractType: model.ContractPut, Side: model.SideLong}, nil
	case model.StrategyCoveredCall:
		return Variant{Type: t, ContractType: model.ContractCall, Side: model.SideShort}, nil
	case model.StrategyCashSecuredPut:
		return Variant{Type: t, ContractType: model.ContractPut, Side: model.SideShort}, nil
	default:
		return Variant{}, fmt.Errorf("%w: unknown strategy type %q", dto.ErrInvalidInput, t)
	}
}

// Accepts reports whether a signal direction supports opening this strategy.
func (v Variant) Accepts(direction dto.Direction) bool {
	switch v.Type {
	case model.StrategyLongCall:
		return direction == dto.DirectionBullish
	case model.StrategyLongPut:
		return direction == dto.DirectionBearish
	case model.StrategyCoveredCall, model.StrategyCashSecuredPut:
		return direction == dto.DirectionBullish || direction == dto.DirectionNeutral
	default:
		return false
	}
}

// ExpectedDirection describes what Accepts wants, for diagnostics.
func (v Variant) ExpectedDirection() string {
	switch v.Type {
	case model.StrategyLongCall:
		return string(dto.DirectionBullish)
	case model.StrategyLongPut:
		return string(dto.DirectionBearish)
	default:
		return "bullish or neutral"
	}
}

func OpenAction(side model.PositionSide) model.TradeAction {
	if side == model.SideShort {
		return model.TradeActionSell
	}
	return model.TradeActionBuy
}

func CloseAction(side model.PositionSide) model.TradeAction {
	if side == model.SideShort {
		return model.TradeActionBuy
	}
	return model.TradeActionSell
}

// Sizing is the cash footprint of an opening order.
type Sizing struct {
	// Notional is what the risk manager measures against the balance.
	Notional decimal.Decimal
	// RequiredCash must be available in the account before opening.
	RequiredCash decimal.Decimal
	// CashDelta is applied to the balance on fill (negative is a debit).
	CashDelta decimal.Decimal
	// Collateral is reserved against a short position.
	Collateral decimal.Decimal
}

// SizeOption computes the footprint of an option order at premium.
// underlyingPrice is only read for covered calls.
func SizeOption(side model.PositionSide, contractType model.ContractType, premium decimal.Decimal, strike, underlyingPrice float64, quantity, multiplier int) Sizing {
	units := decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromInt(int64(multiplier)))
	premiumTotal := premium.Mul(units)

	if side == model.SideLong {
		return Sizing{
			Notional:     premiumTotal,
			RequiredCash: premiumTotal,
			CashDelta:    premiumTotal.Neg(),
			Collateral:   decimal.Zero,
		}
	}

	// Short puts are secured by strike cash, short calls by the share value.
	collateral := decimal.NewFromFloat(strike).Mul(units)
	if contractType == model.ContractCall {
		collateral = decimal.NewFromFloat(underlyingPrice).Mul(units)
	}
	return Sizing{
		Notional:     collateral,
		RequiredCash: collateral,
		CashDelta:    premiumTotal,
		Collateral:   collateral.Round(2),
	}
}

func SizeStock(price decimal.Decimal, quantity int) Sizing {
	total := price.Mul(decimal.NewFromInt(int64(quantity)))
	return Sizing{
		Notional:     total,
		RequiredCash: total,
		CashDelta:    total.Neg(),
		Collateral:   decimal.Zero,
	}
}

// CloseCashDelta is the balance change when pos is closed at price.
func CloseCashDelta(pos *model.Position, price decimal.Decimal, contractMultiplier int) decimal.Decimal {
	total := price.Mul(decimal.NewFromInt(int64(pos.Quantity))).Mul(pos.Multiplier(contractMultiplier))
	if pos.Side == model.SideShort {
		return total.Neg()
	}
	return total
}
