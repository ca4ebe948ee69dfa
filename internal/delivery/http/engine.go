package http

import (
	"net/http"

	"golang-options/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupEngine(base *echo.Group) {
	v1 := base.Group("/v1/engine")
	{
		v1.POST("/run", h.runCycle)
		v1.GET("/status", h.engineStatus)
	}
}

func (h *HttpAPIHandler) runCycle(c echo.Context) error {
	result, err := h.service.SchedulerService.RunCycleNow(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Cycle completed", result))
}

func (h *HttpAPIHandler) engineStatus(c echo.Context) error {
	status := h.service.SchedulerService.Status(c.Request().Context())
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", status))
}
