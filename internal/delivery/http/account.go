package http

import (
	"net/http"

	"golang-options/internal/dto"
	"golang-options/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupAccounts(base *echo.Group) {
	v1 := base.Group("/v1/accounts")
	{
		v1.GET("/:id", h.getAccount)
	}
}

type accountResponse struct {
	Account *model.Account   `json:"account"`
	State   dto.AccountState `json:"state"`
}

func (h *HttpAPIHandler) getAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx := c.Request().Context()

	acc, err := h.service.AccountService.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	state, err := h.service.AccountService.State(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", accountResponse{Account: acc, State: state}))
}
