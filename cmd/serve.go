package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/order-gateway/internal/config"
	"github.com/example/order-gateway/internal/db"
	httpSrv "github.com/example/order-gateway/internal/http"
	"github.com/example/order-gateway/internal/kafka"
	"github.com/example/order-gateway/internal/logger"
	"github.com/example/order-gateway/internal/publisher"
	"github.com/example/order-gateway/internal/repository"
	orders "github.com/example/order-gateway/internal/service/orders"
	"github.com/example/order-gateway/internal/sweeper"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server, publisher pool and reconciliation sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			DialTimeout:  cfg.Kafka.DialTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		defer func() { _ = producer.Close() }()

		ordersRepo := repository.NewOrdersRepository(mysqlDB)
		pub := publisher.New(ordersRepo, producer, cfg.Publisher.EmitTimeout)
		pool := publisher.NewPool(pub, cfg.Publisher.Workers, cfg.Publisher.QueueSize)
		sweep := sweeper.New(ordersRepo, pub, cfg.Sweeper.Interval)
		ordersSvc := orders.New(ordersRepo, pool)

		server := httpSrv.NewServer(cfg, ordersSvc, chDB, redisClient)

		bgCtx, bgCancel := context.WithCancel(context.Background())
		defer bgCancel()
		poolDone := make(chan struct{})
		go func() {
			pool.Run(bgCtx)
			close(poolDone)
		}()
		go sweep.Run(bgCtx)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("starting http on %s", cfg.HTTP.Addr)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("signal received: %s, shutting down...", sig)
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		// let the pool drain queued publish attempts; the sweeper covers the rest
		bgCancel()
		select {
		case <-poolDone:
		case <-time.After(5 * time.Second):
		}

		return nil
	},
}
