package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/checkout/internal/checkout"
	"github.com/Skotchmaster/checkout/internal/logging"
	"github.com/Skotchmaster/checkout/internal/orderstore"
	"github.com/Skotchmaster/checkout/internal/util"
)

type AdminHandler struct {
	Engine *checkout.Engine
	Store  *orderstore.Store
}

func (h *AdminHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Store.ListAll(ctx, offset, limit)
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

func (h *AdminHandler) SetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.set_status")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		l.Warn("set_status_error", "status", 400, "reason", "id is not an integer")
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("set_status_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Engine.SetStatus(ctx, uint(id), orderstore.Status(req.Status))
	if err != nil {
		var invalid *orderstore.InvalidTransitionError
		switch {
		case errors.Is(err, orderstore.ErrNotFound):
			l.Warn("set_status_error", "status", 404, "reason", "order not found", "order_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, orderstore.ErrUnknownStatus):
			l.Warn("set_status_error", "status", 400, "reason", "unknown status", "to", req.Status)
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		case errors.As(err, &invalid):
			l.Warn("set_status_error", "status", 409, "reason", "invalid transition",
				"from", string(invalid.From), "to", string(invalid.To))
			return echo.NewHTTPError(http.StatusConflict, map[string]any{
				"error": "invalid status transition",
				"from":  string(invalid.From),
				"to":    string(invalid.To),
			})
		default:
			l.Error("set_status_error", "status", 500, "reason", "internal error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("set_status_success", "order_id", order.ID, "new_status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.stats")

	stats, err := h.Store.Stats(ctx)
	if err != nil {
		l.Error("stats_error", "status", 500, "reason", "cannot aggregate orders", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot aggregate orders")
	}

	return c.JSON(http.StatusOK, stats)
}
