package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/order-gateway/internal/model"
	"github.com/segmentio/kafka-go"
)

// OrderCreatedTopic is the well-known destination for order creation events.
const OrderCreatedTopic = "order_created"

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	DialTimeout  time.Duration // default 1s
	WriteTimeout time.Duration // default 1s
}

// Producer is a thin wrapper around a segmentio/kafka-go Writer with bounded
// connect and send timeouts, so one bad attempt cannot stall its caller; the
// sweeper owns retrying, not this writer.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(c ProducerConfig) *Producer {
	topic := c.Topic
	if topic == "" {
		topic = OrderCreatedTopic
	}
	dial := c.DialTimeout
	if dial <= 0 {
		dial = time.Second
	}
	write := c.WriteTimeout
	if write <= 0 {
		write = time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           write,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{DialTimeout: dial},
	}

	return &Producer{w: w}
}

// EmitOrderCreated publishes the event keyed by order id (duplicates under
// at-least-once delivery land on the same partition).
func (p *Producer) EmitOrderCreated(ctx context.Context, ev model.OrderCreatedEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ID),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error { return p.w.Close() }
