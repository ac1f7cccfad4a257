package loggingmw

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/logging"
)

func captureRequest(t *testing.T, handler echo.HandlerFunc) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(base))
	e.GET("/orders/:id", handler)

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRequestLogger_LevelsByOutcome(t *testing.T) {
	entry := captureRequest(t, func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	assert.Equal(t, "request_completed", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, float64(http.StatusNoContent), entry["status"])
	assert.Equal(t, "/orders/42", entry["path"])
	assert.Equal(t, "/orders/:id", entry["route"])

	entry = captureRequest(t, func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	})
	assert.Equal(t, "request_rejected", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])

	entry = captureRequest(t, func(c echo.Context) error {
		return errors.New("boom")
	})
	assert.Equal(t, "request_failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestRequestLogger_BindsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(base))
	e.GET("/", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inner")
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "req-7", rec.Header().Get(echo.HeaderXRequestID))

	var inner map[string]any
	require.NoError(t, json.Unmarshal([]byte(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0]), &inner))
	assert.Equal(t, "inner", inner["msg"])
	assert.Equal(t, "req-7", inner["request_id"])
	assert.Equal(t, http.MethodGet, inner["method"])
}
