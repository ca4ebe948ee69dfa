package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	var denied []string
	e := echo.New()
	e.Use(RateLimiter(RateLimitConfig{
		PerSecond: 0.001,
		Burst:     1,
		OnDeny:    func(route string) { denied = append(denied, route) },
	}))
	e.GET("/api/v1/engine/status", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	rec := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"code":429,"message":"Too many requests, try again later"}`, rec.Body.String())
	assert.Equal(t, []string{"/api/v1/engine/status"}, denied)

	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}
