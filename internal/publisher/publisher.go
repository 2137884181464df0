package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/example/order-gateway/internal/logger"
	"github.com/example/order-gateway/internal/metrics"
	"github.com/example/order-gateway/internal/model"
	"github.com/example/order-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Broker emits order events to the message bus. Emit must respect ctx
// deadlines; delivery is at-least-once.
type Broker interface {
	EmitOrderCreated(ctx context.Context, ev model.OrderCreatedEvent) error
}

// Publisher performs the transactional publish of a single order: mark the
// row published and emit the event as one unit, rolling the mark back when
// the emit fails so the order stays eligible for the sweeper.
type Publisher struct {
	repo        repository.OrdersRepository
	broker      Broker
	emitTimeout time.Duration
}

func New(repo repository.OrdersRepository, broker Broker, emitTimeout time.Duration) *Publisher {
	if emitTimeout <= 0 {
		emitTimeout = time.Second
	}
	return &Publisher{
		repo:        repo,
		broker:      broker,
		emitTimeout: emitTimeout,
	}
}

// Publish attempts to publish the order's creation event.
//
// Safe to call repeatedly and concurrently for the same order: the
// conditional mark inside the transaction lets exactly one attempt win the
// null -> timestamp transition; every other attempt is a no-op. A broker
// failure rolls the mark back, so published_at only ever moves one way.
func (p *Publisher) Publish(ctx context.Context, order model.Order) error {
	published := false

	err := p.repo.Transact(ctx, func(tx *sqlx.Tx) error {
		marked, err := p.repo.MarkPublished(ctx, tx, order.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		if !marked {
			// already published by a concurrent attempt; nothing to emit
			return nil
		}

		emitCtx, cancel := context.WithTimeout(ctx, p.emitTimeout)
		defer cancel()
		if err := p.broker.EmitOrderCreated(emitCtx, model.ToEvent(order)); err != nil {
			return fmt.Errorf("emit order_created: %w", err)
		}

		published = true
		return nil
	})
	if err != nil {
		metrics.PublishAttemptsTotal.WithLabelValues("failure").Inc()
		logger.Log.Error("publish attempt failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return err
	}

	if published {
		metrics.PublishAttemptsTotal.WithLabelValues("success").Inc()
		logger.Log.Info("published order", zap.String("order_id", order.ID))
	} else {
		metrics.PublishAttemptsTotal.WithLabelValues("skipped").Inc()
	}
	return nil
}
