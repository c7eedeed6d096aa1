package dto

import (
	"kalyekart-order-service/internal/model"
)

type ShippingDTO struct {
	Street        string `json:"street" binding:"required"`
	Barangay      string `json:"barangay"`
	City          string `json:"city" binding:"required"`
	Province      string `json:"province"`
	PostalCode    string `json:"postalCode"`
	ContactNumber string `json:"contactNumber"`
}

func (s ShippingDTO) ToModel() model.Shipping {
	return model.Shipping{
		Street:        s.Street,
		Barangay:      s.Barangay,
		City:          s.City,
		Province:      s.Province,
		PostalCode:    s.PostalCode,
		ContactNumber: s.ContactNumber,
	}
}

// CartItemDTO carries only what the customer chooses. Name and price are
// read from the catalog; any such fields in the body are ignored.
type CartItemDTO struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// QuoteRequest is the body of POST /delivery-fee.
type QuoteRequest struct {
	Shipping ShippingDTO `json:"shipping" binding:"required"`
}

type QuoteResponse struct {
	DistanceKm  float64 `json:"distanceKm"`
	DeliveryFee float64 `json:"deliveryFee"`
	Strategy    string  `json:"strategy"`
}

// CreateOrderRequest is used by the HTTP API and the order_placed consumer.
type CreateOrderRequest struct {
	Items         []CartItemDTO `json:"items" binding:"required,min=1,dive"`
	Shipping      ShippingDTO   `json:"shipping" binding:"required"`
	PaymentMethod string        `json:"paymentMethod" binding:"required"`
}

func (r CreateOrderRequest) CartItems() []model.CartItem {
	items := make([]model.CartItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, model.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

type CheckoutResponse struct {
	Order        *model.Order `json:"order"`
	ClientSecret string       `json:"clientSecret,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// DecideRefundRequest is the admin verdict on a refund request.
type DecideRefundRequest struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejectionReason"`
}
