package ratelimit

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"storefront/internal/cache"
	"storefront/internal/logging"
	"storefront/internal/metrics"
)

type Config struct {
	Limiter cache.Limiter
	Limit   int
	Window  time.Duration
	// KeyFunc defaults to the client IP.
	KeyFunc func(c echo.Context) string
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c echo.Context) string { return c.RealIP() }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyFunc(c)

			allowed, err := cfg.Limiter.Allow(c.Request().Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				// Backing store unreachable: deny. Failing open would
				// turn a redis outage into an unlimited quota.
				logging.FromContext(c.Request().Context()).Error("rate limiter unavailable", "error", err)
				metrics.RateLimitDenialsTotal.Inc()
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate_limited"})
			}
			if !allowed {
				metrics.RateLimitDenialsTotal.Inc()
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate_limited"})
			}
			return next(c)
		}
	}
}
