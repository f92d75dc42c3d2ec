package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/auth"
)

type Deps struct {
	DB              *gorm.DB
	Auth            *auth.Middleware
	CheckoutHandler *CheckoutHandler
	OrderHandler    *OrderHandler
	AdminHandler    *AdminHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	orders := v1.Group("/orders", d.Auth.RequireLogin)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)

	v1.POST("/checkout", d.CheckoutHandler.Checkout, d.Auth.RequireLogin)

	admin := v1.Group("/admin", d.Auth.AdminOnly)
	admin.GET("/orders", d.AdminHandler.ListOrders)
	admin.PATCH("/orders/:id/status", d.AdminHandler.SetStatus)
	admin.GET("/stats", d.AdminHandler.Stats)
}
