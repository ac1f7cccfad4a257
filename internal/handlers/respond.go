package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/logging"
	"storefront/internal/service"
)

// respondError maps service sentinels onto status codes and a stable
// error code. Internals never leak to the client; the request logger
// already has the full error.
func respondError(c echo.Context, err error) error {
	l := logging.FromContext(c.Request().Context())

	var status int
	var code string
	switch {
	case errors.Is(err, service.ErrValidation):
		status, code = http.StatusBadRequest, "invalid"
	case errors.Is(err, service.ErrSignature):
		status, code = http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, service.ErrAuth):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrConflict):
		status, code = http.StatusConflict, "exists"
	case errors.Is(err, service.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrGateway):
		status, code = http.StatusBadGateway, "gateway"
	case errors.Is(err, service.ErrDisabled):
		status, code = http.StatusServiceUnavailable, "disabled"
	case errors.Is(err, service.ErrRetryable):
		status, code = http.StatusServiceUnavailable, "retry"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}

	if status >= 500 {
		l.Error("request_failed", "status", status, "error", err)
	} else {
		l.Warn("request_rejected", "status", status, "reason", code, "error", err)
	}
	return c.JSON(status, echo.Map{"error": code})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return service.ErrValidation
	}
	if err := c.Validate(req); err != nil {
		return service.ErrValidation
	}
	return nil
}
