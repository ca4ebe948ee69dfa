package http

import (
	"net/http"

	"golang-options/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupPositions(base *echo.Group) {
	v1 := base.Group("/v1/positions")
	{
		v1.GET("", h.listPositions)
		v1.POST("", h.openPosition)
		v1.POST("/:id/close", h.closePosition)
		v1.GET("/:id/trades", h.positionTrades)
	}
}

func (h *HttpAPIHandler) listPositions(c echo.Context) error {
	query := new(dto.ListPositionsQuery)
	if err := h.bindAndValidate(c, query); err != nil {
		return h.fail(c, err)
	}

	positions, err := h.service.PositionService.List(c.Request().Context(), *query)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", positions))
}

func (h *HttpAPIHandler) openPosition(c echo.Context) error {
	req := new(dto.OpenPositionRequest)
	if err := h.bindAndValidate(c, req); err != nil {
		return h.fail(c, err)
	}

	fill, err := h.service.PositionService.Open(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Position opened", fill))
}

func (h *HttpAPIHandler) closePosition(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	req := new(dto.ClosePositionRequest)
	if c.Request().ContentLength > 0 {
		if err := h.bindAndValidate(c, req); err != nil {
			return h.fail(c, err)
		}
	}

	fill, err := h.service.PositionService.Close(c.Request().Context(), id, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Position closed", fill))
}

func (h *HttpAPIHandler) positionTrades(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	trades, err := h.service.PositionService.Trades(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", trades))
}
