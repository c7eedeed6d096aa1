package rabbit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

const (
	PlacedExchange = "order_placed"
	PlacedQueue    = "order_service_orders"
)

// SetupConsumers binds the service queue to the order_placed fanout and
// feeds every delivery to the consumer until ctx is done or the channel closes.
func SetupConsumers(ctx context.Context, ch *amqp091.Channel, consumer *PlaceOrderConsumer) error {
	if err := ch.ExchangeDeclare(PlacedExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", PlacedExchange, err)
	}

	q, err := ch.QueueDeclare(PlacedQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", PlacedQueue, err)
	}

	// Fanout ignores the routing key.
	if err := ch.QueueBind(q.Name, "", PlacedExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", PlacedExchange, err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", q.Name, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					slog.Warn("order_placed delivery channel closed")
					return
				}
				if err := consumer.Handle(ctx, m.Body); err != nil {
					slog.ErrorContext(ctx, "failed to handle order_placed", "message_id", m.MessageId, "error", err)
				}
			}
		}
	}()

	slog.InfoContext(ctx, "subscribed to exchange", "exchange", PlacedExchange, "queue", q.Name)
	return nil
}
