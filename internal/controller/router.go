package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kalyekart-order-service/internal/middleware"
)

// Handlers groups the controllers mounted by RegisterRoutes.
type Handlers struct {
	Orders    *OrderController
	Estimates *EstimateController
	Analytics *AnalyticsController
}

// RegisterRoutes mounts the public, authenticated and admin routes. auth
// must set the caller identity the way middleware.AuthMiddleware does.
func RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc, h Handlers) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/delivery-fee", h.Orders.QuoteDeliveryFee)
	if h.Estimates != nil {
		r.GET("/delivery-fee/estimate", h.Estimates.Estimate)
	}

	authed := r.Group("/")
	authed.Use(auth)
	authed.POST("/orders", h.Orders.CreateOrder)
	authed.GET("/orders/mine", h.Orders.GetMyOrders)
	authed.GET("/orders/:orderId", h.Orders.GetOrder)
	authed.POST("/orders/:orderId/cancel", h.Orders.CancelOrder)
	authed.POST("/orders/:orderId/refund", h.Orders.RequestRefund)
	authed.POST("/orders/:orderId/payment/confirm", h.Orders.ConfirmPayment)

	admin := authed.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders/all", h.Orders.GetAllOrders)
	admin.GET("/orders/status/:status", h.Orders.GetOrdersByStatus)
	admin.PATCH("/orders/:orderId/status", h.Orders.UpdateStatus)
	admin.GET("/refunds/pending", h.Orders.GetPendingRefunds)
	admin.PATCH("/orders/:orderId/refund", h.Orders.DecideRefund)
	if h.Analytics != nil {
		admin.GET("/analytics", h.Analytics.Snapshot)
		admin.GET("/analytics/stream", h.Analytics.Stream)
	}
}
