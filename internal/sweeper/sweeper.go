package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/example/order-gateway/internal/logger"
	"github.com/example/order-gateway/internal/metrics"
	"github.com/example/order-gateway/internal/model"
	"go.uber.org/zap"
)

// Store is the slice of the order store the sweeper needs.
type Store interface {
	FindPublishPending(ctx context.Context) ([]model.Order, error)
}

// Publisher re-drives the publication attempt for one order.
type Publisher interface {
	Publish(ctx context.Context, order model.Order) error
}

// Sweeper periodically re-publishes every order still pending, picking up
// whatever the fire-and-forget intake path lost to broker outages, drops, or
// crashes. It holds no state of its own; re-querying the store each tick is
// always valid.
type Sweeper struct {
	store    Store
	pub      Publisher
	interval time.Duration

	inFlight atomic.Bool
}

func New(store Store, pub Publisher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sweeper{store: store, pub: pub, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval. A failed
// tick is logged and the next tick proceeds independently.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single reconciliation pass. The in-flight guard keeps a
// long pass from stacking on top of itself when invoked from outside Run.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	pending, err := s.store.FindPublishPending(ctx)
	if err != nil {
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		logger.Log.Error("sweep: pending lookup failed", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		metrics.SweepsTotal.WithLabelValues("ok").Inc()
		return
	}

	logger.Log.Info("sweep: retrying pending orders", zap.Int("count", len(pending)))

	for _, order := range pending {
		if ctx.Err() != nil {
			return
		}
		// per-order failures are already logged by the publisher; the rest
		// of the batch still gets its attempt
		_ = s.pub.Publish(ctx, order)
	}
	metrics.SweepsTotal.WithLabelValues("ok").Inc()
}
