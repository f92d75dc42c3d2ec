package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/checkout/internal/auth"
	"github.com/Skotchmaster/checkout/internal/checkout"
	"github.com/Skotchmaster/checkout/internal/logging"
	"github.com/Skotchmaster/checkout/internal/orderstore"
	"github.com/Skotchmaster/checkout/internal/util"
)

type OrderHandler struct {
	Engine *checkout.Engine
	Store  *orderstore.Store
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		l.Warn("get_order_error", "status", 400, "reason", "id is not an integer")
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	order, err := h.Engine.Order(ctx, uint(id), userID, auth.IsAdmin(c))
	if err != nil {
		if errors.Is(err, orderstore.ErrNotFound) {
			l.Warn("get_order_error", "status", 404, "reason", "order not found", "order_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_error", "status", 500, "reason", "internal error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	userID, ok := auth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Store.List(ctx, userID, offset, limit)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "reason", "cannot list orders", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": orders,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}
