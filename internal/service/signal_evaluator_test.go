package service

import (
	"context"
	"errors"
	"testing"

	"golang-options/internal/dto"
	"golang-options/pkg/clock"
	"golang-options/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreIndicators(t *testing.T) {
	tests := []struct {
		name       string
		ind        dto.Indicators
		direction  dto.Direction
		confidence float64
	}{
		{
			name: "aligned bullish with volume",
			ind: dto.Indicators{
				Price: 200, RSI: 25, MACDHistogram: 0.5,
				SMA20: 190, SMA50: 180, SMA200: 170, VolumeRatio: 1.6,
			},
			direction:  dto.DirectionBullish,
			confidence: 1,
		},
		{
			name: "aligned bearish with volume",
			ind: dto.Indicators{
				Price: 150, RSI: 75, MACDHistogram: -0.4,
				SMA20: 160, SMA50: 170, SMA200: 180, VolumeRatio: 2,
			},
			direction:  dto.DirectionBearish,
			confidence: 1,
		},
		{
			name: "mixed",
			ind: dto.Indicators{
				Price: 200, RSI: 50, MACDHistogram: 0,
				SMA20: 190, SMA50: 195, SMA200: 195, VolumeRatio: 1,
			},
			direction:  dto.DirectionNeutral,
			confidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScoreIndicators("AAPL", &tt.ind, testNow)
			assert.Equal(t, "AAPL", s.Symbol)
			assert.Equal(t, tt.direction, s.Direction)
			assert.InDelta(t, tt.confidence, s.Confidence, 1e-9)
			assert.Len(t, s.Indicators, 4)
			assert.Equal(t, testNow, s.EvaluatedAt)
		})
	}
}

func TestScoreIndicators_LowVolumeWeakensLean(t *testing.T) {
	ind := dto.Indicators{Price: 200, RSI: 50, MACDHistogram: 0.5, SMA20: 190, SMA50: 180, SMA200: 170, VolumeRatio: 0.5}
	s := ScoreIndicators("AAPL", &ind, testNow)

	// (1.5*1 + 1*1 - 0.5*0.5) / 4
	assert.InDelta(t, 0.5625, s.WeightedVote, 1e-9)
	assert.Equal(t, dto.DirectionBullish, s.Direction)
	assert.Equal(t, "weakens", s.Indicators[3].Note)
}

func TestSignalEvaluator_Evaluate(t *testing.T) {
	market := newFakeMarket()
	market.indicators["AAPL"] = dto.Indicators{Symbol: "AAPL", Price: 200, RSI: 25, MACDHistogram: 0.5, SMA20: 190, SMA50: 180, SMA200: 170, VolumeRatio: 1.6}
	evaluator := NewSignalEvaluator(logger.NewNop(), market, clock.NewMock(testNow))
	ctx := context.Background()

	s, err := evaluator.Evaluate(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, dto.DirectionBullish, s.Direction)

	_, err = evaluator.Evaluate(ctx, "aapl")
	assert.True(t, errors.Is(err, dto.ErrInvalidSymbol))

	_, err = evaluator.Evaluate(ctx, "MSFT")
	assert.True(t, errors.Is(err, dto.ErrDataUnavailable))
}
