package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/order-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// OrderReport is a row of the ClickHouse reporting view.
type OrderReport struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Address    string    `db:"address" json:"address"`
	ItemsJSON  string    `db:"items" json:"-"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`

	Items []model.EventItem `db:"-" json:"items"`
}

// CHOrdersRepository is the ClickHouse read model fed from order_created.
// The backing table is a ReplacingMergeTree keyed by order id, so the
// duplicate deliveries an at-least-once topic allows collapse on merge.
type CHOrdersRepository interface {
	InsertOrderCreated(ctx context.Context, ev model.OrderCreatedEvent, receivedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]OrderReport, error)
}

type chOrdersRepository struct {
	ch *sqlx.DB
}

func NewCHOrdersRepository(ch *sqlx.DB) CHOrdersRepository {
	return &chOrdersRepository{ch: ch}
}

func (r *chOrdersRepository) InsertOrderCreated(ctx context.Context, ev model.OrderCreatedEvent, receivedAt time.Time) error {
	items, err := json.Marshal(ev.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	const q = `
		INSERT INTO ordergw.order_events (id, name, address, items, received_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.ch.ExecContext(ctx, q, ev.ID, ev.Name, ev.Address, string(items), receivedAt); err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

func (r *chOrdersRepository) List(ctx context.Context, limit, offset int) ([]OrderReport, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT id, name, address, items, received_at
		FROM ordergw.order_events FINAL
		ORDER BY received_at DESC
		LIMIT ? OFFSET ?
	`
	var rows []OrderReport
	if err := r.ch.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, fmt.Errorf("select order events: %w", err)
	}

	for i := range rows {
		if rows[i].ItemsJSON == "" {
			continue
		}
		if err := json.Unmarshal([]byte(rows[i].ItemsJSON), &rows[i].Items); err != nil {
			return nil, fmt.Errorf("decode items for %s: %w", rows[i].ID, err)
		}
	}
	return rows, nil
}
