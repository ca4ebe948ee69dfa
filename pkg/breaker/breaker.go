package breaker

import (
	"errors"
	"time"

	"golang-options/config"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New returns a breaker that trips after cfg.MaxConsecutiveFailures
// consecutive failures or when more than 5% of at least 20 requests fail.
func New(name string, cfg config.Breaker) *Breaker {
	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	st := gobreaker.Settings{
		Name:     name,
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
	}
	if st.Timeout <= 0 {
		st.Timeout = 30 * time.Second
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= maxFailures {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker. Open and half-open rejections are
// reported as ErrOpen.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return res, err
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
