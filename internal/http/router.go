// README: HTTP route registration: gin engine, middleware chain, per-role route groups.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"yalla/internal/http/handlers"
	"yalla/internal/http/middleware"
	"yalla/internal/infra"
	"yalla/internal/modules/catalog"
	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/modules/presence"
	"yalla/internal/notify"
)

type RouterDeps struct {
	Orders   *order.Service
	Dispatch *dispatch.Service
	Presence *presence.Service
	Catalog  *catalog.Store
	Inbox    *notify.Sink
	Verifier infra.TokenVerifier
	Log      *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Dispatch, deps.Inbox)
	customer := api.Group("/orders", middleware.RequireRole("customer"))
	customer.POST("", orderHandler.Create)
	customer.GET("", orderHandler.List)
	customer.GET("/:id", orderHandler.Get)
	customer.POST("/:id/cancel", orderHandler.Cancel)
	customer.GET("/:id/track", orderHandler.Track)

	me := api.Group("/me")
	me.GET("/notifications", orderHandler.Notifications)
	me.POST("/notifications/:id/read", orderHandler.MarkNotificationRead)
	me.POST("/push-token", orderHandler.RegisterPushToken)

	restHandler := handlers.NewRestaurantHandler(deps.Orders, deps.Dispatch, deps.Catalog)
	rest := api.Group("/restaurant", middleware.RequireRole("restaurant"))
	rest.GET("/orders", restHandler.Orders)
	rest.GET("/orders/history", restHandler.History)
	rest.POST("/orders/:id/status", restHandler.UpdateStatus)
	rest.POST("/orders/:id/payment/confirm", restHandler.ConfirmPayment)
	rest.POST("/orders/:id/payment/reject", restHandler.RejectPayment)
	rest.POST("/orders/:id/assign-courier", restHandler.AssignCourier)
	rest.POST("/orders/:id/request-platform", restHandler.RequestPlatform)
	rest.POST("/orders/:id/reassign", restHandler.Reassign)
	rest.GET("/orders/:id/drivers", restHandler.EligibleDrivers)
	rest.POST("/orders/:id/pick-driver", restHandler.PickDriver)
	rest.GET("/couriers", restHandler.Couriers)
	rest.POST("/couriers", restHandler.AddCourier)
	rest.DELETE("/couriers/:courierId", restHandler.RemoveCourier)
	rest.POST("/favorites/:driverId", restHandler.AddFavorite)
	rest.DELETE("/favorites/:driverId", restHandler.RemoveFavorite)
	rest.PATCH("/settings", restHandler.UpdateSettings)

	driverHandler := handlers.NewDriverHandler(deps.Orders, deps.Dispatch, deps.Presence)
	driver := api.Group("/driver", middleware.RequireRole("driver"))
	driver.POST("/online", driverHandler.SetOnline)
	driver.POST("/location", driverHandler.Ping)
	driver.GET("/orders/available", driverHandler.Available)
	driver.POST("/orders/:id/claim", driverHandler.Claim)
	driver.GET("/orders", driverHandler.MyOrders)
	driver.GET("/orders/history", driverHandler.History)
	driver.POST("/orders/:id/status", driverHandler.UpdateStatus)
	driver.GET("/stats", driverHandler.Stats)

	return r
}
