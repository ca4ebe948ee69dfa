package http

import (
	"context"

	"golang-options/config"
	"golang-options/internal/service"
	"golang-options/pkg/logger"
	"golang-options/pkg/metrics"
	"golang-options/pkg/middleware"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	cfg       *config.Config
	log       *logger.Logger
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
	metrics   *metrics.Registry
}

func NewHttpAPIHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	echo *echo.Echo,
	validator *goValidator.Validate,
	service *service.Service,
	registry *metrics.Registry,
) *HttpAPIHandler {
	return &HttpAPIHandler{
		cfg:       cfg,
		log:       log,
		echo:      echo,
		validator: validator,
		service:   service,
		metrics:   registry,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	if h.metrics != nil {
		h.echo.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	base := h.echo.Group("/api")
	if h.cfg.API.RateLimitPerSecond > 0 {
		base.Use(middleware.RateLimiter(middleware.RateLimitConfig{
			PerSecond: h.cfg.API.RateLimitPerSecond,
			Burst:     h.cfg.API.RateLimitBurst,
			OnDeny: func(route string) {
				if h.metrics != nil {
					h.metrics.HTTPThrottled.WithLabelValues(route).Inc()
				}
			},
		}))
	}

	h.SetupAutomations(base)
	h.SetupEngine(base)
	h.SetupPositions(base)
	h.SetupAccounts(base)
}
