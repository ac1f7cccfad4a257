package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"storefront/internal/logging"
	"storefront/internal/service"
	"storefront/internal/transport"
)

type OrderHandler struct {
	Svc *service.OrderService
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	var req transport.CreateOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body")
		return respondError(c, err)
	}

	order, err := h.Svc.CreateOrder(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) CreatePaymentSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.CreateSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	url, err := h.Svc.CreatePaymentSession(ctx, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, transport.CreateSessionResponse{CheckoutURL: url})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.Svc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	orders, err := h.Svc.ListOrders(c.Request().Context(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// OrderEvents streams order status snapshots as server-sent events. The
// loop ends the moment the client goes away; nothing polls for a dead
// connection.
func (h *OrderHandler) OrderEvents(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	order, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	write := func() error {
		snapshot, err := json.Marshal(echo.Map{
			"id":             order.ID,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(res, "data: %s\n\n", snapshot); err != nil {
			return err
		}
		res.Flush()
		return nil
	}
	if err := write(); err != nil {
		return nil
	}

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			order, err = h.Svc.GetOrder(ctx, id)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					return nil
				}
				continue
			}
			if err := write(); err != nil {
				return nil
			}
		}
	}
}
