package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const DefaultStreamInterval = 5 * time.Second

// SendFunc delivers one serialized snapshot to a subscriber.
type SendFunc func(payload []byte) error

// Stream pushes a snapshot immediately and then every interval until ctx is
// done or send fails. A payload identical to the previous one is not sent.
// A failed computation is logged and skipped.
func (a *Aggregator) Stream(ctx context.Context, r Range, interval time.Duration, send SendFunc) error {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	sub := &subscription{agg: a, rng: r, send: send}

	if err := sub.push(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sub.push(ctx); err != nil {
				return err
			}
		}
	}
}

// subscription holds the last payload sent to one subscriber.
type subscription struct {
	agg  *Aggregator
	rng  Range
	send SendFunc
	last []byte
}

func (s *subscription) push(ctx context.Context) error {
	snap, err := s.agg.Snapshot(ctx, s.rng)
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "analytics snapshot failed", "range", s.rng.Preset, "error", err)
		}
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode analytics snapshot", "error", err)
		return nil
	}
	if s.last != nil && bytes.Equal(payload, s.last) {
		return nil
	}
	if err := s.send(payload); err != nil {
		return err
	}
	s.last = payload
	return nil
}
