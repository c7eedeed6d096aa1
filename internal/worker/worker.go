package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 10 * time.Second

// Advancer moves orders whose ETA has expired to their next status.
type Advancer interface {
	AdvanceExpiredOrders(ctx context.Context, now time.Time) (int, error)
}

// StatusWorker periodically advances expired orders. A tick that fails is
// logged and the loop keeps going.
type StatusWorker struct {
	advancer Advancer
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStatusWorker(advancer Advancer, interval time.Duration) *StatusWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &StatusWorker{
		advancer: advancer,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the loop in a goroutine. Calling Start on a running worker is a no-op.
func (w *StatusWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		w.Run(ctx)
	}(w.done)
}

// Stop cancels the loop and waits for the tick in flight to finish.
func (w *StatusWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks until ctx is cancelled, ticking every interval.
func (w *StatusWorker) Run(ctx context.Context) {
	slog.InfoContext(ctx, "status worker started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "status worker stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick performs a single scan.
func (w *StatusWorker) Tick(ctx context.Context) {
	n, err := w.advancer.AdvanceExpiredOrders(ctx, w.now())
	if err != nil {
		slog.ErrorContext(ctx, "status worker tick failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "orders advanced", "count", n)
	}
}
