// Package metrics exposes the order pipeline counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	OrdersPlaced         prometheus.Counter
	ReservationConflicts prometheus.Counter
	PaymentIntents       prometheus.Counter
	WebhookEvents        *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders placed.",
		}),
		ReservationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "inventory",
			Name:      "reservation_conflicts_total",
			Help:      "Reservation attempts rejected for insufficient stock.",
		}),
		PaymentIntents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "payments",
			Name:      "intents_total",
			Help:      "Payment intents created.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
	}
	prometheus.MustRegister(r.OrdersPlaced, r.ReservationConflicts, r.PaymentIntents, r.WebhookEvents)
	return r
}

func Handler() http.Handler {
	return promhttp.Handler()
}
