// Package metrics exposes inventory counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

const namespace = "inventory"

// Recorder implements port.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	stockMutations *prometheus.CounterVec
	alertsRaised   prometheus.Counter
	notifications  *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: registry,
		stockMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stock_mutations_total",
				Help:      "Stock mutation requests by movement kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		alertsRaised: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "low_stock_alerts_total",
				Help:      "Low-stock alerts recorded.",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Low-stock notifications by delivery outcome.",
			},
			[]string{"outcome"},
		),
	}
	registry.MustRegister(r.stockMutations, r.alertsRaised, r.notifications)
	return r
}

func (r *Recorder) StockMutation(kind domain.MovementKind, outcome string) {
	r.stockMutations.WithLabelValues(string(kind), outcome).Inc()
}

func (r *Recorder) AlertRaised() {
	r.alertsRaised.Inc()
}

func (r *Recorder) Notification(outcome string) {
	r.notifications.WithLabelValues(outcome).Inc()
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
