package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-gateway/internal/logger"
	"github.com/example/order-gateway/internal/metrics"
	"github.com/example/order-gateway/internal/model"
	"go.uber.org/zap"
)

// Pool runs fire-and-forget publish attempts for freshly created orders on a
// bounded queue with a fixed set of workers, so intake never blocks on the
// broker being slow or down.
type Pool struct {
	pub            *Publisher
	jobs           chan model.Order
	workers        int
	attemptTimeout time.Duration

	wg sync.WaitGroup
}

func NewPool(pub *Publisher, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		pub:            pub,
		jobs:           make(chan model.Order, queueSize),
		workers:        workers,
		attemptTimeout: 5 * time.Second,
	}
}

// Run starts the workers and blocks until ctx is cancelled and the queue is
// drained.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	<-ctx.Done()
	close(p.jobs)
	p.wg.Wait()
}

// Dispatch queues a publish attempt without blocking. When the queue is full
// the job is dropped; the sweeper re-drives every pending order, so a drop
// costs latency, not correctness.
func (p *Pool) Dispatch(order model.Order) bool {
	select {
	case p.jobs <- order:
		return true
	default:
		metrics.PublishAttemptsTotal.WithLabelValues("dropped").Inc()
		logger.Log.Warn("publisher queue full, leaving order for sweeper",
			zap.String("order_id", order.ID))
		return false
	}
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for order := range p.jobs {
		// Detached from the request context: the HTTP response has already
		// been sent by the time this runs.
		attemptCtx, cancel := context.WithTimeout(context.Background(), p.attemptTimeout)
		_ = p.pub.Publish(attemptCtx, order) // failures are logged and swept later
		cancel()
	}
}
