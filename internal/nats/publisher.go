package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"kalyekart-order-service/internal/model"
)

const StatusChangedSubject = "order.status_changed"

type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// Publisher sends order status events on a NATS subject.
type Publisher struct {
	nc      conn
	close   func()
	subject string
}

// NewPublisher connects to NATS, trying up to three times.
func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for i := 0; i < 3; i++ {
		var nc *nats.Conn
		nc, err = nats.Connect(url,
			nats.Name("KalyeKart Order Service"),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				slog.Warn("NATS disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			slog.InfoContext(ctx, "connected to NATS", "url", url)
			return &Publisher{nc: nc, close: nc.Close, subject: StatusChangedSubject}, nil
		}

		slog.WarnContext(ctx, "failed to connect to NATS", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
}

func (p *Publisher) PublishStatusChanged(ctx context.Context, evt model.StatusChangedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}

	slog.DebugContext(ctx, "published status event", "subject", p.subject, "order_id", evt.OrderID, "to", evt.To)
	return nil
}

func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
		slog.Info("NATS connection closed")
	}
}
