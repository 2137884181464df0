package projector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/order-gateway/internal/kafka"
	"github.com/example/order-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	committed []kafka.Message
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("not used")
}

func (s *fakeSource) Commit(ctx context.Context, m kafka.Message) error {
	s.committed = append(s.committed, m)
	return nil
}

type fakeSink struct {
	err      error
	inserted []model.OrderCreatedEvent
}

func (s *fakeSink) InsertOrderCreated(ctx context.Context, ev model.OrderCreatedEvent, receivedAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, ev)
	return nil
}

func message(t *testing.T, ev model.OrderCreatedEvent) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(ev.ID), Value: raw}
}

func TestProcessOneLandsEventAndCommits(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{}
	p := New(src, sink)

	ev := model.ToEvent(model.Order{ID: "o-1", Name: "Johannes", Address: "Germany"})
	p.ProcessOne(context.Background(), message(t, ev))

	require.Len(t, sink.inserted, 1)
	assert.Equal(t, "o-1", sink.inserted[0].ID)
	assert.Len(t, src.committed, 1)
}

func TestProcessOneSkipsPoison(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{}
	p := New(src, sink)

	p.ProcessOne(context.Background(), kafka.Message{Value: []byte("{not json")})

	assert.Empty(t, sink.inserted)
	// poison is committed so it never wedges the partition
	assert.Len(t, src.committed, 1)
}

func TestProcessOneSkipsForeignEventType(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{}
	p := New(src, sink)

	raw, err := json.Marshal(map[string]any{"_type": "OrderShippedEvent", "id": "o-1"})
	require.NoError(t, err)
	p.ProcessOne(context.Background(), kafka.Message{Value: raw})

	assert.Empty(t, sink.inserted)
	assert.Len(t, src.committed, 1)
}

func TestProcessOneLeavesUncommittedOnSinkFailure(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{err: errors.New("clickhouse unreachable")}
	p := New(src, sink)

	ev := model.ToEvent(model.Order{ID: "o-1"})
	p.ProcessOne(context.Background(), message(t, ev))

	assert.Empty(t, sink.inserted)
	// uncommitted: the broker will redeliver
	assert.Empty(t, src.committed)
}
