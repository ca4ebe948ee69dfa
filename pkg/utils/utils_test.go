package utils

import (
	"context"
	"errors"
	"testing"

	"golang-options/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestSafeCall(t *testing.T) {
	assert.NoError(t, SafeCall(func() error { return nil }))

	want := errors.New("boom")
	assert.ErrorIs(t, SafeCall(func() error { return want }), want)

	err := SafeCall(func() error { panic("nil map") })
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered: nil map")
}

func TestShouldContinue(t *testing.T) {
	log := logger.NewNop()
	assert.True(t, ShouldContinue(context.Background(), log))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ShouldContinue(ctx, log))
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "+20.0%", FormatPercentage(20))
	assert.Equal(t, "-5.5%", FormatPercentage(-5.5))
}
