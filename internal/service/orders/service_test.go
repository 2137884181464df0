package orders

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

type fakeRepo struct {
	mu        sync.Mutex
	insertErr error
	inserted  []model.Order
}

func (r *fakeRepo) Insert(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.inserted = append(r.inserted, *o)
	return nil
}

func (r *fakeRepo) MarkPublished(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) (bool, error) {
	return false, nil
}

func (r *fakeRepo) FindPublishPending(ctx context.Context) ([]model.Order, error) {
	return nil, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.inserted {
		if r.inserted[i].ID == id {
			cp := r.inserted[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *fakeRepo) Transact(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []model.Order
}

func (d *fakeDispatcher) Dispatch(order model.Order) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, order)
	return true
}

func TestCreateStoresAndDispatches(t *testing.T) {
	repo := &fakeRepo{}
	disp := &fakeDispatcher{}
	svc := New(repo, disp)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		Name:    "Johannes",
		Address: "Germany",
		Items: []ItemInput{
			{Name: "The Wrong Trousers", Quantity: 1, UnitPrice: 9.99},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Nil(t, order.PublishedAt, "publication is never confirmed at response time")
	require.Len(t, order.Items, 1)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.Equal(t, 9.99, order.Items[0].UnitPrice)

	require.Len(t, repo.inserted, 1)
	require.Len(t, disp.dispatched, 1)
	assert.Equal(t, order.ID, disp.dispatched[0].ID)
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	svc := New(&fakeRepo{}, &fakeDispatcher{})

	a, err := svc.Create(context.Background(), CreateOrderInput{Name: "a"})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), CreateOrderInput{Name: "b"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateInsertFailurePropagates(t *testing.T) {
	repo := &fakeRepo{insertErr: errors.New("store unreachable")}
	disp := &fakeDispatcher{}
	svc := New(repo, disp)

	_, err := svc.Create(context.Background(), CreateOrderInput{Name: "x"})
	require.Error(t, err)

	// nothing to publish for an order that was never stored
	assert.Empty(t, disp.dispatched)
}
