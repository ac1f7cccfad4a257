package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storefront/internal/service"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// tokenFrom prefers the Authorization header, falling back to the
// access-token cookie set at login.
func tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

func RequireLogin(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFrom(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			claims, err := service.AccessClaimsFromToken(token, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set(ContextUserID, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}

func RequireAdmin(secret []byte) echo.MiddlewareFunc {
	requireLogin := RequireLogin(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return requireLogin(func(c echo.Context) error {
			if role, _ := c.Get(ContextRole).(string); role != "admin" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		})
	}
}
