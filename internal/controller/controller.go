package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"kalyekart-order-service/internal/dto"
	"kalyekart-order-service/internal/middleware"
	"kalyekart-order-service/internal/model"
	"kalyekart-order-service/internal/service"
)

type OrderController struct {
	Service *service.OrderService
}

func NewOrderController(s *service.OrderService) *OrderController {
	return &OrderController{Service: s}
}

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrGeocode), errors.Is(err, model.ErrUpload), errors.Is(err, model.ErrPayment):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// POST /orders
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := ctl.Service.CreateOrder(
		c.Request.Context(),
		c.GetString(middleware.CtxUserID),
		req.CartItems(),
		req.Shipping.ToModel(),
		model.PaymentMethod(req.PaymentMethod),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckoutResponse{Order: res.Order, ClientSecret: res.ClientSecret})
}

// GET /orders/mine
func (ctl *OrderController) GetMyOrders(c *gin.Context) {
	orders, err := ctl.Service.ListMyOrders(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /orders/:orderId
func (ctl *OrderController) GetOrder(c *gin.Context) {
	o, err := ctl.Service.GetOrder(
		c.Request.Context(),
		c.Param("orderId"),
		c.GetString(middleware.CtxUserID),
		c.GetBool(middleware.CtxIsAdmin),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// POST /orders/:orderId/cancel
func (ctl *OrderController) CancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	// The body is optional. Chunked requests report no length, so read until EOF.
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			bindError(c, err)
			return
		}
	}

	o, err := ctl.Service.CancelOrder(c.Request.Context(), c.Param("orderId"), c.GetString(middleware.CtxUserID), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// POST /orders/:orderId/payment/confirm
func (ctl *OrderController) ConfirmPayment(c *gin.Context) {
	o, err := ctl.Service.ConfirmPayment(c.Request.Context(), c.Param("orderId"), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /admin/orders/all
func (ctl *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := ctl.Service.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /admin/orders/status/:status
func (ctl *OrderController) GetOrdersByStatus(c *gin.Context) {
	orders, err := ctl.Service.ListByStatus(c.Request.Context(), model.Status(c.Param("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// PATCH /admin/orders/:orderId/status
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	o, err := ctl.Service.ForceSetStatus(
		c.Request.Context(),
		c.Param("orderId"),
		model.Status(req.Status),
		c.GetString(middleware.CtxUserID),
		req.Reason,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
