package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/cache"
	"storefront/internal/handlers"
	authmw "storefront/internal/middleware/auth"
	"storefront/internal/middleware/csrf"
	"storefront/internal/middleware/ratelimit"
)

type Deps struct {
	OrderHandler   *handlers.OrderHandler
	AuthHandler    *handlers.AuthHandler
	AdminHandler   *handlers.AdminHandler
	CatalogHandler *handlers.CatalogHandler
	WebhookHandler *handlers.WebhookHandler

	JWTSecret    []byte
	Limiter      cache.Limiter
	RateLimit    int
	SecureCookie bool
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	csrfCfg := csrf.Config{Secure: d.SecureCookie}
	guard := csrf.Middleware(csrfCfg)
	limited := ratelimit.Middleware(ratelimit.Config{
		Limiter: d.Limiter,
		Limit:   d.RateLimit,
		Window:  time.Minute,
	})

	v1 := e.Group("/api/v1")

	// The gateway cannot play the CSRF game and signs its requests
	// instead; it also must not be rate limited away.
	v1.POST("/payments/webhook", d.WebhookHandler.HandleGatewayEvent)

	auth := v1.Group("/auth", limited)
	auth.GET("/csrf", csrf.Issue(csrfCfg))
	auth.GET("/me", d.AuthHandler.Me, authmw.RequireLogin(d.JWTSecret))
	auth.POST("/register", d.AuthHandler.Register, guard)
	auth.POST("/login", d.AuthHandler.Login, guard)
	auth.POST("/logout", d.AuthHandler.Logout, guard)
	auth.POST("/refresh", d.AuthHandler.Refresh, guard)
	auth.POST("/verify-email", d.AuthHandler.VerifyEmail, guard)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword, guard)
	auth.POST("/push/subscribe", d.AuthHandler.SubscribePush, guard)

	v1.POST("/orders", d.OrderHandler.CreateOrder, limited, guard)
	v1.GET("/orders/:id", d.OrderHandler.GetOrder)
	v1.GET("/orders/:id/events", d.OrderHandler.OrderEvents)
	v1.POST("/payments/session", d.OrderHandler.CreatePaymentSession, limited, guard)

	v1.GET("/promotions", d.CatalogHandler.ListPromotions)
	v1.GET("/promotions/:id", d.CatalogHandler.GetPromotion)

	admin := v1.Group("/admin", authmw.RequireAdmin(d.JWTSecret))
	admin.GET("/orders", d.OrderHandler.ListOrders)
	admin.GET("/users", d.AdminHandler.ListUsers)
	admin.PATCH("/orders/:id", d.AdminHandler.UpdateOrderStatus)
	admin.DELETE("/orders/:id", d.AdminHandler.DeleteOrder)
	admin.POST("/coupons", d.AdminHandler.CreateCoupon)
	admin.DELETE("/coupons/:code", d.AdminHandler.DeactivateCoupon)
	admin.POST("/promotions", d.AdminHandler.SavePromotion)
	admin.PUT("/promotions/:id", d.AdminHandler.SavePromotion)
	admin.DELETE("/promotions/:id", d.AdminHandler.DeletePromotion)
}
