package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"kalyekart-order-service/internal/model"
)

const StatusChangedExchange = "order_status_changed"

type publishChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// StatusPublisher fans status transitions out on the order_status_changed exchange.
type StatusPublisher struct {
	ch publishChannel
}

func NewStatusPublisher(ch publishChannel) (*StatusPublisher, error) {
	if err := ch.ExchangeDeclare(StatusChangedExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", StatusChangedExchange, err)
	}
	return &StatusPublisher{ch: ch}, nil
}

func (p *StatusPublisher) PublishStatusChanged(ctx context.Context, evt model.StatusChangedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, StatusChangedExchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         "order.status_changed",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", StatusChangedExchange, err)
	}
	return nil
}
