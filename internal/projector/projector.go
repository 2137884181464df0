package projector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/order-gateway/internal/kafka"
	"github.com/example/order-gateway/internal/logger"
	"github.com/example/order-gateway/internal/model"
	"go.uber.org/zap"
)

// Source fetches order_created messages; Commit acknowledges one of them.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Sink lands an order creation event in the reporting store. Inserting the
// same event twice must be harmless: the topic is at-least-once and the
// producer may duplicate under races.
type Sink interface {
	InsertOrderCreated(ctx context.Context, ev model.OrderCreatedEvent, receivedAt time.Time) error
}

// Projector tails order_created into the reporting store.
type Projector struct {
	src  Source
	sink Sink
}

func New(src Source, sink Sink) *Projector {
	return &Projector{src: src, sink: sink}
}

// Run blocks until ctx is cancelled.
func (p *Projector) Run(ctx context.Context) error {
	for {
		m, err := p.src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.Error("projector: fetch failed", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}
		p.ProcessOne(ctx, m)
	}
}

// ProcessOne decodes and lands a single message. Payloads that are not a
// well-formed OrderCreatedEvent are committed and skipped (poison), anything
// that fails on the sink side is left uncommitted for redelivery.
func (p *Projector) ProcessOne(ctx context.Context, m kafka.Message) {
	var ev model.OrderCreatedEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" || ev.Type != model.EventTypeOrderCreated {
		if err != nil {
			logger.Log.Warn("projector: bad payload, skipping", zap.Error(err))
		} else {
			logger.Log.Warn("projector: foreign event, skipping", zap.String("type", ev.Type))
		}
		if err := p.src.Commit(ctx, m); err != nil {
			logger.Log.Error("projector: commit failed", zap.Error(err))
		}
		return
	}

	if err := p.sink.InsertOrderCreated(ctx, ev, time.Now().UTC()); err != nil {
		// no commit: the broker redelivers and the sink dedupes by order id
		logger.Log.Error("projector: sink insert failed",
			zap.String("order_id", ev.ID), zap.Error(err))
		return
	}

	if err := p.src.Commit(ctx, m); err != nil {
		logger.Log.Error("projector: commit failed",
			zap.String("order_id", ev.ID), zap.Error(err))
	}
}
