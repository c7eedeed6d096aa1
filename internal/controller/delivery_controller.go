package controller

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kalyekart-order-service/internal/dto"
	"kalyekart-order-service/internal/geo"
	"kalyekart-order-service/internal/model"
)

// POST /delivery-fee
func (ctl *OrderController) QuoteDeliveryFee(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	q, err := ctl.Service.QuoteDelivery(c.Request.Context(), req.Shipping.ToModel())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.QuoteResponse{
		DistanceKm:  q.DistanceKm,
		DeliveryFee: q.DeliveryFee,
		Strategy:    ctl.Service.FeeStrategyName(),
	})
}

// EstimateController serves the table-based fee estimate shown before checkout.
type EstimateController struct {
	Strategy geo.FeeStrategy
}

// GET /delivery-fee/estimate?city=
func (ctl *EstimateController) Estimate(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		writeError(c, fmt.Errorf("%w: city is required", model.ErrValidation))
		return
	}

	q, err := ctl.Strategy.Quote(c.Request.Context(), model.Shipping{City: city})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.QuoteResponse{
		DistanceKm:  q.DistanceKm,
		DeliveryFee: q.DeliveryFee,
		Strategy:    ctl.Strategy.Name(),
	})
}
