package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront/internal/payment"
	"storefront/internal/service"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Svc *service.OrderService
}

// HandleGatewayEvent reads the body as raw bytes first; the signature
// covers the bytes on the wire, not any re-serialization. Success is
// returned both for applied and already-applied events so the gateway
// stops redelivering; only transient persistence failures answer 5xx.
func (h *WebhookHandler) HandleGatewayEvent(c echo.Context) error {
	ctx := c.Request().Context()

	rawBody, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return respondError(c, service.ErrValidation)
	}

	sig := c.Request().Header.Get(payment.SignatureHeader)
	if err := h.Svc.HandlePaymentEvent(ctx, rawBody, sig); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
