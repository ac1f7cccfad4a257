package loggingmw

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"storefront/internal/logging"
)

// RequestLogger binds a request-scoped logger into the context so every
// layer below logs with the same request attributes, then writes one
// line per request, levelled by outcome.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			l := base.With(
				"method", req.Method,
				"path", req.URL.Path,
				"route", c.Path(),
				"remote_ip", c.RealIP(),
			)
			if rid := req.Header.Get(echo.HeaderXRequestID); rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}

			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}

			status := c.Response().Status
			attrs := []any{
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", c.Response().Size,
			}
			switch {
			case err != nil:
				l.Error("request_failed", append(attrs, "error", err.Error())...)
			case status >= 500:
				l.Error("request_failed", attrs...)
			case status >= 400:
				l.Warn("request_rejected", attrs...)
			default:
				l.Info("request_completed", attrs...)
			}
			return nil
		}
	}
}
