package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/order-gateway/internal/model"
	"github.com/example/order-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrdersRepo is an in-memory repository.OrdersRepository. Transact holds a
// mutex for the whole callback, mirroring the row lock the real store takes on
// the conditional update, and restores published_at when the callback errors
// (rollback).
type fakeOrdersRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newFakeOrdersRepo(orders ...model.Order) *fakeOrdersRepo {
	r := &fakeOrdersRepo{orders: make(map[string]*model.Order)}
	for i := range orders {
		o := orders[i]
		r.orders[o.ID] = &o
	}
	return r
}

func (r *fakeOrdersRepo) Transact(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := make(map[string]*time.Time, len(r.orders))
	for id, o := range r.orders {
		before[id] = o.PublishedAt
	}

	if err := fn(nil); err != nil {
		for id, ts := range before {
			r.orders[id].PublishedAt = ts
		}
		return err
	}
	return nil
}

func (r *fakeOrdersRepo) Insert(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrdersRepo) MarkPublished(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) (bool, error) {
	o, ok := r.orders[id]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if o.PublishedAt != nil {
		return false, nil
	}
	o.PublishedAt = &at
	return true, nil
}

func (r *fakeOrdersRepo) FindPublishPending(ctx context.Context) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []model.Order
	for _, o := range r.orders {
		if o.PublishedAt == nil {
			pending = append(pending, *o)
		}
	}
	return pending, nil
}

func (r *fakeOrdersRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrdersRepo) publishedAt(id string) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].PublishedAt
}

type fakeBroker struct {
	mu     sync.Mutex
	down   bool
	events []model.OrderCreatedEvent
}

func (b *fakeBroker) EmitOrderCreated(ctx context.Context, ev model.OrderCreatedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return errors.New("dial tcp: connection refused")
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *fakeBroker) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *fakeBroker) emitted() []model.OrderCreatedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.OrderCreatedEvent(nil), b.events...)
}

func testOrder(id string) model.Order {
	return model.Order{
		ID:      id,
		Name:    "Johannes",
		Address: "Germany",
		Items:   []model.Item{{OrderID: id, Name: "The Wrong Trousers", Quantity: 1, UnitPrice: 9.99}},
	}
}

func TestPublishMarksAndEmits(t *testing.T) {
	order := testOrder("o-1")
	repo := newFakeOrdersRepo(order)
	broker := &fakeBroker{}
	pub := New(repo, broker, time.Second)

	require.NoError(t, pub.Publish(context.Background(), order))

	require.NotNil(t, repo.publishedAt("o-1"))
	events := broker.emitted()
	require.Len(t, events, 1)
	assert.Equal(t, "o-1", events[0].ID)
	assert.Equal(t, model.EventTypeOrderCreated, events[0].Type)
}

func TestPublishRollsBackOnBrokerFailure(t *testing.T) {
	order := testOrder("o-1")
	repo := newFakeOrdersRepo(order)
	broker := &fakeBroker{down: true}
	pub := New(repo, broker, time.Second)

	err := pub.Publish(context.Background(), order)
	require.Error(t, err)

	// the mark must not survive a failed emit
	assert.Nil(t, repo.publishedAt("o-1"))
	assert.Empty(t, broker.emitted())
}

func TestPublishIdempotent(t *testing.T) {
	order := testOrder("o-1")
	repo := newFakeOrdersRepo(order)
	broker := &fakeBroker{}
	pub := New(repo, broker, time.Second)

	require.NoError(t, pub.Publish(context.Background(), order))
	first := repo.publishedAt("o-1")
	require.NotNil(t, first)

	// second attempt is a no-op: no error, no new emit, timestamp untouched
	require.NoError(t, pub.Publish(context.Background(), order))
	assert.Equal(t, first, repo.publishedAt("o-1"))
	assert.Len(t, broker.emitted(), 1)
}

func TestPublishUnknownOrder(t *testing.T) {
	repo := newFakeOrdersRepo()
	pub := New(repo, &fakeBroker{}, time.Second)

	err := pub.Publish(context.Background(), testOrder("missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestPublishConcurrentSingleWinner(t *testing.T) {
	order := testOrder("o-1")
	repo := newFakeOrdersRepo(order)
	broker := &fakeBroker{}
	pub := New(repo, broker, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Publish(context.Background(), order)
		}()
	}
	wg.Wait()

	require.NotNil(t, repo.publishedAt("o-1"))
	assert.Len(t, broker.emitted(), 1)
}

func TestPublishRecoversAfterBrokerOutage(t *testing.T) {
	order := testOrder("o-1")
	repo := newFakeOrdersRepo(order)
	broker := &fakeBroker{down: true}
	pub := New(repo, broker, time.Second)

	require.Error(t, pub.Publish(context.Background(), order))
	require.Nil(t, repo.publishedAt("o-1"))

	broker.setDown(false)

	require.NoError(t, pub.Publish(context.Background(), order))
	assert.NotNil(t, repo.publishedAt("o-1"))
	assert.Len(t, broker.emitted(), 1)
}
