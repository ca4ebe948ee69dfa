package breaker

import (
	"errors"
	"testing"
	"time"

	"golang-options/config"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := New("quotes", config.Breaker{MaxConsecutiveFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (any, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	called := false
	_, err := b.Execute(func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_PassesResult(t *testing.T) {
	b := New("quotes", config.Breaker{})
	res, err := b.Execute(func() (any, error) { return 42, nil })
	assert.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, "closed", b.State())
}
