package controller

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"kalyekart-order-service/internal/dto"
	"kalyekart-order-service/internal/middleware"
	"kalyekart-order-service/internal/model"
)

// POST /orders/:orderId/refund, multipart with "reason" and a "proof" file.
func (ctl *OrderController) RequestRefund(c *gin.Context) {
	ctx := c.Request.Context()
	reason := c.PostForm("reason")

	proofPath := ""
	if file, err := c.FormFile("proof"); err == nil {
		tmp, err := os.CreateTemp("", "refund-proof-*"+filepath.Ext(file.Filename))
		if err != nil {
			writeError(c, err)
			return
		}
		tmp.Close()
		defer func() {
			if err := os.Remove(tmp.Name()); err != nil {
				slog.WarnContext(ctx, "failed to remove proof upload", "path", tmp.Name(), "error", err)
			}
		}()

		if err := c.SaveUploadedFile(file, tmp.Name()); err != nil {
			writeError(c, err)
			return
		}
		proofPath = tmp.Name()
	}

	o, err := ctl.Service.RequestRefund(ctx, c.Param("orderId"), c.GetString(middleware.CtxUserID), reason, proofPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// GET /admin/refunds/pending
func (ctl *OrderController) GetPendingRefunds(c *gin.Context) {
	orders, err := ctl.Service.ListPendingRefunds(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// PATCH /admin/orders/:orderId/refund
func (ctl *OrderController) DecideRefund(c *gin.Context) {
	var req dto.DecideRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	o, err := ctl.Service.DecideRefund(c.Request.Context(), c.Param("orderId"), model.RefundStatus(req.Status), req.RejectionReason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
