package http

import (
	"errors"
	"fmt"
	"net/http"

	"golang-options/internal/dto"
	"golang-options/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// errorResponse maps a service error onto the response envelope.
func errorResponse(err error) *dto.BaseResponse {
	var validationErrs goValidator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		return dto.NewBadRequestResponse(err.Error())
	case errors.Is(err, dto.ErrNotFound):
		return dto.NewNotFoundResponse(err.Error())
	case errors.Is(err, dto.ErrInvalidInput), errors.Is(err, dto.ErrInvalidSymbol):
		return dto.NewBadRequestResponse(err.Error())
	case errors.Is(err, dto.ErrPositionClosed):
		return dto.NewConflictResponse(err.Error())
	case errors.Is(err, dto.ErrRiskDenied),
		errors.Is(err, dto.ErrInsufficientFunds),
		errors.Is(err, dto.ErrPriceRejected),
		errors.Is(err, dto.ErrPriceFetchFailed),
		errors.Is(err, dto.ErrNoSuitableOption):
		return dto.NewUnprocessableResponse(err.Error())
	default:
		return dto.NewInternalErrorResponse(err.Error())
	}
}

func (h *HttpAPIHandler) fail(c echo.Context, err error) error {
	response := errorResponse(err)
	if response.Code >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "Request failed",
			logger.StringField("path", c.Path()),
			logger.ErrorField(err))
	}
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", dto.ErrInvalidInput)
	}
	return h.validator.Struct(req)
}

func pathID(c echo.Context) (uint, error) {
	var id uint
	if err := echo.PathParamsBinder(c).MustUint("id", &id).BindError(); err != nil {
		return 0, fmt.Errorf("%w: id must be a positive integer", dto.ErrInvalidInput)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", dto.ErrInvalidInput)
	}
	return id, nil
}
