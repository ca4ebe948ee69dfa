package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limit struct {
	Rate  rate.Limit
	Burst int
}

// PerMinute is a one-token bucket refilled n times a minute. n <= 0 means
// unlimited.
func PerMinute(n int) Limit {
	if n <= 0 {
		return Limit{Rate: rate.Inf, Burst: 1}
	}
	return Limit{Rate: rate.Every(time.Minute / time.Duration(n)), Burst: 1}
}

// LimiterStore hands out one token bucket per provider endpoint. Keys
// without an override get the default limit.
type LimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	overrides map[string]Limit
	def       Limit
}

func NewLimiterStore(def Limit, overrides map[string]Limit) *LimiterStore {
	return &LimiterStore{
		limiters:  make(map[string]*rate.Limiter),
		overrides: overrides,
		def:       def,
	}
}

func (s *LimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, exists := s.limiters[key]; exists {
		return limiter
	}
	l, ok := s.overrides[key]
	if !ok {
		l = s.def
	}
	limiter := rate.NewLimiter(l.Rate, l.Burst)
	s.limiters[key] = limiter
	return limiter
}

// Wait blocks until key may proceed or ctx is done, and reports how long the
// caller was held.
func (s *LimiterStore) Wait(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()
	err := s.GetLimiter(key).Wait(ctx)
	return time.Since(start), err
}
