package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordergw_orders_created_total",
			Help: "Orders accepted and durably stored",
		},
	)

	PublishAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordergw_publish_attempts_total",
			Help: "Publication attempts by result",
		},
		[]string{"result"}, // success|skipped|failure|dropped
	)

	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordergw_sweeps_total",
			Help: "Reconciliation sweeper ticks by result",
		},
		[]string{"result"}, // ok|error
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OrdersCreatedTotal,
		PublishAttemptsTotal,
		SweepsTotal,
	)
}
