package dto

import (
	"math"
	"time"

	"golang-options/internal/model"
)

// Quote is a single price observation. InstrumentType is empty when the
// provider does not report it; UnderlyingPrice is zero when unknown.
type Quote struct {
	Symbol          string               `json:"symbol"`
	Price           float64              `json:"price"`
	Change          float64              `json:"change"`
	Volume          int64                `json:"volume"`
	High            float64              `json:"high"`
	Low             float64              `json:"low"`
	InstrumentType  model.InstrumentType `json:"instrument_type,omitempty"`
	Underlying      string               `json:"underlying,omitempty"`
	UnderlyingPrice float64              `json:"underlying_price,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

type OptionContract struct {
	Symbol       string             `json:"symbol"`
	Underlying   string             `json:"underlying"`
	ContractType model.ContractType `json:"contract_type"`
	Strike       float64            `json:"strike"`
	Expiration   time.Time          `json:"expiration"`
	Delta        float64            `json:"delta"`
	Volume       int64              `json:"volume"`
	OpenInterest int64              `json:"open_interest"`
	Bid          float64            `json:"bid"`
	Ask          float64            `json:"ask"`
}

func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// SpreadPct is the bid/ask spread as a percentage of mid. A non-positive
// mid yields +Inf so the contract never passes a spread filter.
func (c OptionContract) SpreadPct() float64 {
	mid := c.Mid()
	if mid <= 0 {
		return math.Inf(1)
	}
	return (c.Ask - c.Bid) / mid * 100
}

// DTE counts calendar days from now's date to the expiration date.
func (c OptionContract) DTE(now time.Time) int {
	return DaysBetween(now, c.Expiration)
}

func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

type Indicators struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	RSI           float64   `json:"rsi"`
	MACD          float64   `json:"macd"`
	MACDSignal    float64   `json:"macd_signal"`
	MACDHistogram float64   `json:"macd_histogram"`
	SMA20         float64   `json:"sma20"`
	SMA50         float64   `json:"sma50"`
	SMA200        float64   `json:"sma200"`
	VolumeRatio   float64   `json:"volume_ratio"`
	Timestamp     time.Time `json:"timestamp"`
}

// OptionSpec identifies one listed contract.
type OptionSpec struct {
	Underlying   string             `json:"underlying"`
	OptionSymbol string             `json:"option_symbol"`
	ContractType model.ContractType `json:"contract_type"`
	Strike       float64            `json:"strike"`
	Expiration   time.Time          `json:"expiration"`
}

func (c OptionContract) Spec() OptionSpec {
	return OptionSpec{
		Underlying:   c.Underlying,
		OptionSymbol: c.Symbol,
		ContractType: c.ContractType,
		Strike:       c.Strike,
		Expiration:   c.Expiration,
	}
}

// SelectionConstraints drive the option selector. Nil delta bounds are not
// applied; zero liquidity thresholds pass everything.
type SelectionConstraints struct {
	ContractType    model.ContractType `json:"contract_type"`
	MinDTE          int                `json:"min_dte"`
	PreferredDTE    int                `json:"preferred_dte"`
	MaxDTE          int                `json:"max_dte"`
	TargetDelta     *float64           `json:"target_delta,omitempty"`
	MinDelta        *float64           `json:"min_delta,omitempty"`
	MaxDelta        *float64           `json:"max_delta,omitempty"`
	MinVolume       int64              `json:"min_volume"`
	MinOpenInterest int64              `json:"min_open_interest"`
	MaxSpreadPct    float64            `json:"max_spread_pct"`
}
