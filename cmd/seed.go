package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/example/order-gateway/internal/config"
	"github.com/example/order-gateway/internal/db"
	"github.com/example/order-gateway/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo orders...")

		if err := seedOrders(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

// seedOrders inserts deterministic demo orders (idempotent). They are seeded
// unpublished, so the sweeper announces them on its next tick.
func seedOrders(dbx *sqlx.DB) error {
	seeds := []model.Order{
		{
			ID:      "01SEED0000000000000000000A",
			Name:    "Johannes",
			Address: "Germany",
			Items: []model.Item{
				{Name: "The Wrong Trousers", Quantity: 1, UnitPrice: 9.99},
			},
		},
		{
			ID:      "01SEED0000000000000000000B",
			Name:    "Wallace",
			Address: "62 West Wallaby Street",
			Items: []model.Item{
				{Name: "Wensleydale", Quantity: 3, UnitPrice: 4.20},
				{Name: "Crackers", Quantity: 2, UnitPrice: 1.10},
			},
		},
	}

	const upsertOrder = `
INSERT INTO orders (id, name, address, published_at, created_at, updated_at)
VALUES (?, ?, ?, NULL, ?, ?)
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    address    = VALUES(address),
    updated_at = VALUES(updated_at)
`
	const deleteItems = `DELETE FROM order_items WHERE order_id = ?`
	const insertItem = `
INSERT INTO order_items (order_id, name, quantity, unit_price)
VALUES (?, ?, ?, ?)
`

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, o := range seeds {
		if _, err := tx.Exec(upsertOrder, o.ID, o.Name, o.Address, now, now); err != nil {
			return fmt.Errorf("insert order %q: %w", o.Name, err)
		}
		if _, err := tx.Exec(deleteItems, o.ID); err != nil {
			return fmt.Errorf("reset items for %q: %w", o.Name, err)
		}
		for _, it := range o.Items {
			if _, err := tx.Exec(insertItem, o.ID, it.Name, it.Quantity, it.UnitPrice); err != nil {
				return fmt.Errorf("insert item %q: %w", it.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit orders: %w", err)
	}
	return nil
}
