package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// errorBody mirrors the API envelope so throttled callers parse one shape.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	ExpiresIn time.Duration
	// OnDeny is called with the matched route of every throttled request.
	OnDeny func(route string)
}

// RateLimiter throttles API callers per client IP. Engine operations such as
// run-cycle and test-trade reach the market data provider, so one UI session
// must not be able to exhaust the provider quota.
func RateLimiter(cfg RateLimitConfig) echo.MiddlewareFunc {
	expiresIn := cfg.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3 * time.Minute
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.PerSecond),
			Burst:     cfg.Burst,
			ExpiresIn: expiresIn,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errorBody{
				Code:    http.StatusForbidden,
				Message: "Could not identify caller",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if cfg.OnDeny != nil {
				cfg.OnDeny(c.Path())
			}
			return c.JSON(http.StatusTooManyRequests, errorBody{
				Code:    http.StatusTooManyRequests,
				Message: "Too many requests, try again later",
			})
		},
	})
}
