package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang-options/internal/contract"
	"golang-options/internal/dto"
	"golang-options/internal/model"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"
)

const (
	directionEpsilon = 0.05

	rsiOversold   = 30.0
	rsiOverbought = 70.0

	volumeConfirmRatio = 1.5
	volumeWeakRatio    = 0.8

	weightRSI    = 1.0
	weightMA     = 1.5
	weightMACD   = 1.0
	weightVolume = 0.5
)

type signalEvaluator struct {
	log    *logger.Logger
	market contract.MarketDataProvider
	clock  clock.Clock
}

func NewSignalEvaluator(log *logger.Logger, market contract.MarketDataProvider, clk clock.Clock) contract.SignalEvaluator {
	return &signalEvaluator{log: log, market: market, clock: clk}
}

func (s *signalEvaluator) Evaluate(ctx context.Context, symbol string) (*dto.Signal, error) {
	if !model.IsValidTicker(symbol) {
		return nil, fmt.Errorf("%w: %q must be 1-5 uppercase letters", dto.ErrInvalidSymbol, symbol)
	}

	ind, err := s.market.GetIndicators(ctx, symbol)
	if err != nil {
		if !errors.Is(err, dto.ErrDataUnavailable) {
			err = fmt.Errorf("%w: indicators %s: %v", dto.ErrDataUnavailable, symbol, err)
		}
		s.log.WarnContext(ctx, "Indicators unavailable", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return nil, err
	}
	if ind == nil {
		return nil, fmt.Errorf("%w: empty indicators for %s", dto.ErrDataUnavailable, symbol)
	}

	signal := ScoreIndicators(symbol, ind, s.clock.Now())
	s.log.DebugContext(ctx, "Signal evaluated",
		logger.StringField("symbol", symbol),
		logger.StringField("direction", string(signal.Direction)),
		logger.FloatField("confidence", signal.Confidence))
	return signal, nil
}

// ScoreIndicators turns indicator readings into a weighted directional vote.
func ScoreIndicators(symbol string, ind *dto.Indicators, now time.Time) *dto.Signal {
	votes := []dto.IndicatorVote{
		rsiVote(ind.RSI),
		maVote(ind),
		macdVote(ind.MACDHistogram),
	}

	var directional float64
	for _, v := range votes {
		directional += v.Weight * v.Vote
	}
	votes = append(votes, volumeVote(ind.VolumeRatio, directional))

	var sumWeighted, sumWeight float64
	for _, v := range votes {
		sumWeighted += v.Weight * v.Vote
		sumWeight += v.Weight
	}

	weighted := 0.0
	if sumWeight > 0 {
		weighted = sumWeighted / sumWeight
	}

	direction := dto.DirectionNeutral
	switch {
	case weighted > directionEpsilon:
		direction = dto.DirectionBullish
	case weighted < -directionEpsilon:
		direction = dto.DirectionBearish
	}

	return &dto.Signal{
		Symbol:       symbol,
		Confidence:   math.Min(1, math.Abs(weighted)),
		Direction:    direction,
		WeightedVote: weighted,
		Indicators:   votes,
		EvaluatedAt:  now,
	}
}

func rsiVote(rsi float64) dto.IndicatorVote {
	v := dto.IndicatorVote{Name: "rsi", Value: rsi, Weight: weightRSI}
	switch {
	case rsi <= 0:
		v.Note = "missing"
	case rsi < rsiOversold:
		v.Vote, v.Note = 1, "oversold"
	case rsi > rsiOverbought:
		v.Vote, v.Note = -1, "overbought"
	default:
		v.Note = "neutral"
	}
	return v
}

// maVote scores price > SMA20 > SMA50 > SMA200 alignment. Each ordered pair
// counts a third of the vote; missing averages are skipped.
func maVote(ind *dto.Indicators) dto.IndicatorVote {
	v := dto.IndicatorVote{Name: "moving_averages", Value: ind.Price, Weight: weightMA}
	pairs := [][2]float64{
		{ind.Price, ind.SMA20},
		{ind.SMA20, ind.SMA50},
		{ind.SMA50, ind.SMA200},
	}

	var score float64
	for _, p := range pairs {
		if p[0] <= 0 || p[1] <= 0 {
			continue
		}
		switch {
		case p[0] > p[1]:
			score++
		case p[0] < p[1]:
			score--
		}
	}
	v.Vote = score / float64(len(pairs))

	switch {
	case v.Vote == 1:
		v.Note = "bullish alignment"
	case v.Vote == -1:
		v.Note = "bearish alignment"
	default:
		v.Note = "mixed"
	}
	return v
}

func macdVote(hist float64) dto.IndicatorVote {
	v := dto.IndicatorVote{Name: "macd_histogram", Value: hist, Weight: weightMACD}
	switch {
	case hist > 0:
		v.Vote, v.Note = 1, "positive"
	case hist < 0:
		v.Vote, v.Note = -1, "negative"
	default:
		v.Note = "flat"
	}
	return v
}

// volumeVote confirms or weakens whatever direction the other votes lean to.
func volumeVote(ratio, directional float64) dto.IndicatorVote {
	v := dto.IndicatorVote{Name: "volume_ratio", Value: ratio, Weight: weightVolume}
	lean := 0.0
	switch {
	case directional > 0:
		lean = 1
	case directional < 0:
		lean = -1
	}

	switch {
	case lean == 0:
		v.Note = "no direction to confirm"
	case ratio >= volumeConfirmRatio:
		v.Vote, v.Note = lean, "confirms"
	case ratio > 0 && ratio < volumeWeakRatio:
		v.Vote, v.Note = -0.5*lean, "weakens"
	default:
		v.Note = "neutral"
	}
	return v
}
