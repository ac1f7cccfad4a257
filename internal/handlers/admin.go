package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/transport"
)

type AdminHandler struct {
	Orders  *service.OrderService
	Catalog *service.CatalogService
	Auth    *service.AuthService
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.Auth.ListUsers(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) UpdateOrderStatus(c echo.Context) error {
	var req transport.UpdateOrderStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	err := h.Orders.AdminUpdateStatus(c.Request().Context(), c.Param("id"), models.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *AdminHandler) DeleteOrder(c echo.Context) error {
	if err := h.Orders.AdminDeleteOrder(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *AdminHandler) CreateCoupon(c echo.Context) error {
	var req transport.CouponRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	coupon, err := h.Catalog.CreateCoupon(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, coupon)
}

func (h *AdminHandler) DeactivateCoupon(c echo.Context) error {
	if err := h.Catalog.DeactivateCoupon(c.Request().Context(), c.Param("code")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *AdminHandler) SavePromotion(c echo.Context) error {
	var req transport.PromotionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	var id uint
	if p := c.Param("id"); p != "" {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return respondError(c, service.ErrValidation)
		}
		id = uint(n)
	}

	promo, err := h.Catalog.SavePromotion(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, promo)
}

func (h *AdminHandler) DeletePromotion(c echo.Context) error {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, service.ErrValidation)
	}
	if err := h.Catalog.DeletePromotion(c.Request().Context(), uint(n)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
