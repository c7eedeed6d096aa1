// models.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentCard
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Order struct {
	OrderID  string     `bson:"order_id" json:"orderId"`
	UserID   string     `bson:"user_id" json:"userId"`
	Items    []LineItem `bson:"items" json:"items"`
	Shipping Shipping   `bson:"shipping" json:"shipping"`

	Subtotal    float64 `bson:"subtotal" json:"subtotal"`
	DeliveryFee float64 `bson:"delivery_fee" json:"deliveryFee"`
	DistanceKm  float64 `bson:"distance_km" json:"distanceKm"`
	TotalAmount float64 `bson:"total_amount" json:"totalAmount"`

	PaymentMethod   PaymentMethod `bson:"payment_method" json:"paymentMethod"`
	PaymentStatus   PaymentStatus `bson:"payment_status" json:"paymentStatus"`
	PaymentIntentID string        `bson:"payment_intent_id,omitempty" json:"paymentIntentId,omitempty"`

	Status             Status         `bson:"status" json:"status"`
	StatusETA          *time.Time     `bson:"status_eta" json:"statusEta"`
	CancellationReason string         `bson:"cancellation_reason,omitempty" json:"cancellationReason,omitempty"`
	RefundRequest      *RefundRequest `bson:"refund_request,omitempty" json:"refundRequest,omitempty"`
	History            []StatusRecord `bson:"history" json:"history"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// LineItem is snapshotted at checkout; later catalog edits do not reach it.
type LineItem struct {
	ProductID string  `bson:"product_id" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unit_price" json:"unitPrice"`
}

// CartItem is what a customer orders: a product and a quantity. Price and
// name come from the catalog when the order is placed.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Product is the catalog view needed to snapshot a line item.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Shipping struct {
	Street        string `bson:"street" json:"street"`
	Barangay      string `bson:"barangay" json:"barangay"`
	City          string `bson:"city" json:"city"`
	Province      string `bson:"province" json:"province"`
	PostalCode    string `bson:"postal_code" json:"postalCode"`
	ContactNumber string `bson:"contact_number" json:"contactNumber"`
}

type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
)

type RefundRequest struct {
	Reason          string       `bson:"reason" json:"reason"`
	Proof           string       `bson:"proof" json:"proof"`
	Status          RefundStatus `bson:"status" json:"status"`
	RejectionReason string       `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
	RequestedAt     time.Time    `bson:"requested_at" json:"requestedAt"`
	DecidedAt       *time.Time   `bson:"decided_at,omitempty" json:"decidedAt,omitempty"`
}

type StatusRecord struct {
	Status    Status    `bson:"status" json:"status"`
	Reason    string    `bson:"reason" json:"reason"`
	Actor     string    `bson:"actor" json:"actor"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// SystemActor marks history entries written by the auto-advancement worker.
const SystemActor = "system"

// StatusChangedEvent is published on every lifecycle transition.
type StatusChangedEvent struct {
	OrderID   string     `json:"orderId"`
	UserID    string     `json:"userId"`
	From      Status     `json:"from"`
	To        Status     `json:"to"`
	Actor     string     `json:"actor"`
	Reason    string     `json:"reason,omitempty"`
	StatusETA *time.Time `json:"statusEta,omitempty"`
	At        time.Time  `json:"at"`
}

// RecomputeTotals derives subtotal and total from the line items and the
// delivery fee already stamped on the order.
func (o *Order) RecomputeTotals() {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		line := decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
	}
	o.Subtotal = subtotal.Round(2).InexactFloat64()
	o.TotalAmount = subtotal.Add(decimal.NewFromFloat(o.DeliveryFee)).Round(2).InexactFloat64()
}

// AmountMinorUnits is the total in centavos, as payment gateways expect.
func (o *Order) AmountMinorUnits() int64 {
	return decimal.NewFromFloat(o.TotalAmount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
