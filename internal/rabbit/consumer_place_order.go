package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"kalyekart-order-service/internal/dto"
	"kalyekart-order-service/internal/model"
	"kalyekart-order-service/internal/service"
)

// OrderCreator is the part of the order service the consumer drives.
type OrderCreator interface {
	CreateOrder(ctx context.Context, userID string, cart []model.CartItem, addr model.Shipping, method model.PaymentMethod) (*service.Checkout, error)
}

type PlaceOrderConsumer struct {
	Orders OrderCreator
}

func NewPlaceOrderConsumer(orders OrderCreator) *PlaceOrderConsumer {
	return &PlaceOrderConsumer{Orders: orders}
}

// PlacedOrderMessage is the envelope published on the order_placed exchange
// once the cart service has checked a cart out.
type PlacedOrderMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	RoutingKey    string `json:"routing_key"`
	Message       struct {
		CartID        string            `json:"cartId"`
		UserID        string            `json:"userId"`
		Items         []dto.CartItemDTO `json:"items"`
		Shipping      dto.ShippingDTO   `json:"shipping"`
		PaymentMethod string            `json:"paymentMethod"`
	} `json:"message"`
}

func (c *PlaceOrderConsumer) Handle(ctx context.Context, body []byte) error {
	var event PlacedOrderMessage
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode order_placed message: %w", err)
	}
	msg := event.Message

	method := model.PaymentMethod(msg.PaymentMethod)
	if method == "" {
		method = model.PaymentCOD
	}
	req := dto.CreateOrderRequest{Items: msg.Items}

	res, err := c.Orders.CreateOrder(ctx, msg.UserID, req.CartItems(), msg.Shipping.ToModel(), method)
	if err != nil {
		return fmt.Errorf("failed to create order for cart %s: %w", msg.CartID, err)
	}

	slog.InfoContext(ctx, "order created from order_placed",
		"correlation_id", event.CorrelationID, "cart_id", msg.CartID, "order_id", res.Order.OrderID)
	return nil
}
