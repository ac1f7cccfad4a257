package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"storefront/internal/service"
)

type CatalogHandler struct {
	Svc *service.CatalogService
}

func (h *CatalogHandler) ListPromotions(c echo.Context) error {
	promos, err := h.Svc.ListPromotions(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, promos)
}

func (h *CatalogHandler) GetPromotion(c echo.Context) error {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, service.ErrValidation)
	}

	promo, err := h.Svc.GetPromotion(c.Request().Context(), uint(n))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, promo)
}
