package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/backtest"
	"market-sentinel/internal/portfolio"
	"market-sentinel/internal/rule"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorDetail describes one request problem.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// DataResponse writes data with statusCode.
func DataResponse(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, Response{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a 200 reply.
func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

// CreatedResponse writes a 201 reply.
func CreatedResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusCreated, data)
}

// BadRequestResponse writes a 400 reply.
func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// NotFoundResponse writes a 404 reply.
func NotFoundResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusNotFound, data)
}

// ErrorResponse maps domain errors to status codes.
func ErrorResponse(c echo.Context, err error) error {
	detail := []ErrorDetail{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	switch {
	case errors.Is(err, rule.ErrInvalidRule), errors.Is(err, backtest.ErrInvalidParams):
		detail[0].Code = "ERR_INVALID"
		return BadRequestResponse(c, detail)
	case errors.Is(err, alarm.ErrRuleNotFound), errors.Is(err, portfolio.ErrItemNotFound):
		detail[0].Code = "ERR_NOT_FOUND"
		return NotFoundResponse(c, detail)
	}
	slog.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err,
	)
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}
