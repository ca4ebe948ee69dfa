package http

import (
	"net/http"

	"golang-options/internal/dto"
	"golang-options/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupAutomations(base *echo.Group) {
	v1 := base.Group("/v1/automations")
	{
		v1.GET("", h.listAutomations)
		v1.POST("", h.createAutomation)
		v1.GET("/:id", h.getAutomation)
		v1.PATCH("/:id", h.updateAutomation)
		v1.POST("/:id/toggle", h.toggleAutomation)
		v1.POST("/:id/test-trade", h.testTrade)
		v1.GET("/:id/diagnostics", h.automationDiagnostics)
	}
}

func (h *HttpAPIHandler) listAutomations(c echo.Context) error {
	var (
		accountID uint
		active    bool
	)
	err := echo.QueryParamsBinder(c).
		Uint("account_id", &accountID).
		Bool("active", &active).
		BindError()
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid query"))
	}

	param := model.GetAutomationsParam{}
	if accountID != 0 {
		param.AccountID = &accountID
	}
	if c.QueryParam("active") != "" {
		param.IsActive = &active
	}
	automations, err := h.service.AutomationService.List(c.Request().Context(), param)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", automations))
}

func (h *HttpAPIHandler) getAutomation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	a, err := h.service.AutomationService.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", a))
}

func (h *HttpAPIHandler) createAutomation(c echo.Context) error {
	req := new(dto.CreateAutomationRequest)
	if err := h.bindAndValidate(c, req); err != nil {
		return h.fail(c, err)
	}

	a, err := h.service.AutomationService.Create(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Automation created", a))
}

func (h *HttpAPIHandler) updateAutomation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	req := new(dto.UpdateAutomationRequest)
	if err := h.bindAndValidate(c, req); err != nil {
		return h.fail(c, err)
	}

	a, err := h.service.AutomationService.Update(c.Request().Context(), id, *req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Automation updated", a))
}

func (h *HttpAPIHandler) toggleAutomation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	a, err := h.service.AutomationService.Toggle(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Automation toggled", a))
}

func (h *HttpAPIHandler) testTrade(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	outcome, err := h.service.SchedulerService.TestTrade(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Test trade finished", outcome))
}

func (h *HttpAPIHandler) automationDiagnostics(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	report, err := h.service.AutomationService.Diagnostics(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", report))
}
