package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/checkout/internal/auth"
	"github.com/Skotchmaster/checkout/internal/cart"
	"github.com/Skotchmaster/checkout/internal/checkout"
	"github.com/Skotchmaster/checkout/internal/ledger"
	"github.com/Skotchmaster/checkout/internal/logging"
)

type CheckoutHandler struct {
	Engine *checkout.Engine
	Cart   cart.Source
}

func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.checkout")

	userID, ok := auth.UserID(c)
	if !ok {
		l.Warn("checkout_error", "status", 401, "reason", "no identity")
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	snap, err := h.Cart.Snapshot(ctx, userID)
	if err != nil {
		l.Error("checkout_error", "status", 500, "reason", "cannot read cart", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read cart")
	}

	order, err := h.Engine.Checkout(ctx, userID, snap)
	if err != nil {
		var notFound *checkout.ProductNotFoundError
		var short *ledger.InsufficientStockError
		switch {
		case errors.Is(err, checkout.ErrUnauthenticated):
			l.Warn("checkout_error", "status", 401, "reason", "unauthenticated")
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		case errors.Is(err, checkout.ErrEmptyCart):
			l.Warn("checkout_error", "status", 400, "reason", "empty cart")
			return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
		case errors.As(err, &notFound):
			l.Warn("checkout_error", "status", 404, "reason", "product not found", "product_id", notFound.ProductID)
			return echo.NewHTTPError(http.StatusNotFound, map[string]any{
				"error":      "product not found",
				"product_id": notFound.ProductID,
			})
		case errors.As(err, &short):
			l.Warn("checkout_error", "status", 409, "reason", "insufficient stock",
				"product_id", short.ProductID, "available", short.Available)
			return echo.NewHTTPError(http.StatusConflict, map[string]any{
				"error":      "insufficient stock",
				"product_id": short.ProductID,
				"available":  short.Available,
			})
		default:
			l.Error("checkout_error", "status", 500, "reason", "internal error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("checkout_success", "order_id", order.ID, "total", order.Total)
	return c.JSON(http.StatusCreated, order)
}
