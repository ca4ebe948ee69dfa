package dto

import "time"

type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// IndicatorVote is one indicator's signed opinion. Vote is in [-1,1].
type IndicatorVote struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Vote   float64 `json:"vote"`
	Note   string  `json:"note,omitempty"`
}

type Signal struct {
	Symbol       string          `json:"symbol"`
	Confidence   float64         `json:"confidence"`
	Direction    Direction       `json:"direction"`
	WeightedVote float64         `json:"weighted_vote"`
	Indicators   []IndicatorVote `json:"indicators"`
	EvaluatedAt  time.Time       `json:"evaluated_at"`
}
