package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/example/order-gateway/internal/config"
	"github.com/example/order-gateway/internal/http/middleware"
	"github.com/example/order-gateway/internal/metrics"
	"github.com/example/order-gateway/internal/repository"
	orders "github.com/example/order-gateway/internal/service/orders"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, ordersSvc *orders.Service, chDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (ClickHouse read model)
	chOrdersRepo := repository.NewCHOrdersRepository(chDB)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	g := e.Group("", rlMW)
	g.POST("/orders", createOrderHandler(ordersSvc))
	g.GET("/orders/:id", getOrderHandler(ordersSvc))
	g.GET("/reports/orders", listOrderReportsHandler(chOrdersRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
