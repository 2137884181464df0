package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/order-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrOrderNotFound is returned when an order id does not exist in the store.
var ErrOrderNotFound = errors.New("order not found")

// OrdersRepository defines persistence for the orders and order_items tables.
type OrdersRepository interface {
	// Insert persists the order and its items with published_at = NULL.
	// If tx is nil it opens/commits an internal transaction.
	Insert(ctx context.Context, tx *sqlx.Tx, o *model.Order) error

	// MarkPublished sets published_at for the given id if it is still NULL.
	// Returns marked=true when this call performed the transition, and
	// (false, nil) when the order was already published (no-op, never an
	// overwrite). Returns ErrOrderNotFound for an unknown id.
	MarkPublished(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) (bool, error)

	// FindPublishPending returns all orders with published_at IS NULL,
	// items included. Backed by idx_orders_published_at; safe to re-query.
	FindPublishPending(ctx context.Context) ([]model.Order, error)

	// GetByID loads a single order with its items.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// Transact runs fn inside a transaction: any error from fn rolls the
	// whole transaction back, otherwise it is committed.
	Transact(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// OrdersRepositoryImpl is a sqlx-backed implementation.
type OrdersRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrdersRepository(db *sqlx.DB) *OrdersRepositoryImpl {
	return &OrdersRepositoryImpl{db: db}
}

func (r *OrdersRepositoryImpl) Transact(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *OrdersRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	return r.Transact(ctx, fn)
}

func (r *OrdersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	const insertOrder = `
		INSERT INTO orders (id, name, address, published_at, created_at, updated_at)
		VALUES (?, ?, ?, NULL, NOW(), NOW())
	`
	const insertItem = `
		INSERT INTO order_items (order_id, name, quantity, unit_price)
		VALUES (?, ?, ?, ?)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertOrder, o.ID, o.Name, o.Address); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range o.Items {
			if _, err := tx.ExecContext(ctx, insertItem, o.ID, it.Name, it.Quantity, it.UnitPrice); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

func (r *OrdersRepositoryImpl) MarkPublished(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) (bool, error) {
	const mark = `
		UPDATE orders
		SET published_at = ?, updated_at = NOW()
		WHERE id = ? AND published_at IS NULL
	`
	marked := false
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, mark, at, id)
		if err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			marked = true
			return nil
		}

		// Zero rows: either the order is already published (fine) or the id
		// is unknown (caller bug / deleted row).
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT 1 FROM orders WHERE id = ?`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("mark published %s: %w", id, ErrOrderNotFound)
			}
			return fmt.Errorf("mark published recheck: %w", err)
		}
		return nil
	})

	return marked, err
}

func (r *OrdersRepositoryImpl) FindPublishPending(ctx context.Context) ([]model.Order, error) {
	const q = `
		SELECT id, name, address, published_at, created_at, updated_at
		FROM orders
		WHERE published_at IS NULL
	`
	var orders []model.Order
	if err := r.db.SelectContext(ctx, &orders, q); err != nil {
		return nil, fmt.Errorf("select pending orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrdersRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Order, error) {
	const q = `
		SELECT id, name, address, published_at, created_at, updated_at
		FROM orders
		WHERE id = ?
	`
	var o model.Order
	if err := r.db.GetContext(ctx, &o, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []model.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// loadItems attaches order_items rows to the given orders in one query.
func (r *OrdersRepositoryImpl) loadItems(ctx context.Context, orders []model.Order) error {
	ids := make([]string, 0, len(orders))
	idx := make(map[string]int, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
		idx[orders[i].ID] = i
	}

	const base = `
		SELECT order_id, name, quantity, unit_price
		FROM order_items
		WHERE order_id IN (?)
		ORDER BY seq
	`
	q, args, err := sqlx.In(base, ids)
	if err != nil {
		return err
	}
	q = r.db.Rebind(q)

	var items []model.Item
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return fmt.Errorf("select order items: %w", err)
	}

	for _, it := range items {
		i := idx[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}
