package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"storefront/internal/logging"
	authmw "storefront/internal/middleware/auth"
	"storefront/internal/notify"
	"storefront/internal/service"
	"storefront/internal/transport"
)

type AuthHandler struct {
	Svc  *service.AuthService
	Push *notify.PushSender
	// SecureCookie follows the deployment env, same as the CSRF cookie;
	// hardcoding Secure would silently drop cookies over plain HTTP in
	// development.
	SecureCookie bool
}

func createCookie(name, value, path string, exp time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func deleteCookie(name, path string, secure bool) *http.Cookie {
	return createCookie(name, "", path, time.Now().Add(-time.Hour), secure)
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := h.Svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "id": user.ID})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	c.SetCookie(createCookie("accessToken", res.AccessToken, "/", res.AccessExp, h.SecureCookie))
	c.SetCookie(createCookie("sessionToken", res.SessionToken, "/", res.SessionExp, h.SecureCookie))

	l.Info("login_successful")
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "is_admin": res.IsAdmin})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	if ck, err := c.Cookie("sessionToken"); err == nil {
		if err := h.Svc.Logout(ctx, ck.Value); err != nil {
			c.SetCookie(deleteCookie("accessToken", "/", h.SecureCookie))
			c.SetCookie(deleteCookie("sessionToken", "/", h.SecureCookie))
			return respondError(c, err)
		}
	}

	c.SetCookie(deleteCookie("accessToken", "/", h.SecureCookie))
	c.SetCookie(deleteCookie("sessionToken", "/", h.SecureCookie))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	ck, err := c.Cookie("sessionToken")
	if err != nil {
		return respondError(c, service.ErrAuth)
	}

	res, err := h.Svc.Refresh(ctx, ck.Value)
	if err != nil {
		return respondError(c, err)
	}

	c.SetCookie(createCookie("accessToken", res.AccessToken, "/", res.AccessExp, h.SecureCookie))
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "is_admin": res.IsAdmin})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req transport.VerifyEmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.Svc.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Me returns the account behind the presented access token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := c.Get(authmw.ContextUserID).(string)
	user, err := h.Svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// ResetPassword serves both halves of the flow: an email-only body
// requests a reset code, a token+password body applies it.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if req.Token == "" {
		if err := h.Svc.RequestPasswordReset(ctx, req.Email); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}

	if err := h.Svc.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// SubscribePush stores a browser push subscription for the logged-in
// user's email so the notification worker can reach them.
func (h *AuthHandler) SubscribePush(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email        string          `json:"email" validate:"required,email"`
		Subscription json.RawMessage `json:"subscription" validate:"required"`
	}
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.Push.SaveSubscription(ctx, req.Email, string(req.Subscription)); err != nil {
		return respondError(c, service.ErrValidation)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
