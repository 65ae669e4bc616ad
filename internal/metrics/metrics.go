package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the storefront collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	checkouts   *prometheus.CounterVec
	sessions    *prometheus.CounterVec
	cartWrites  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of backend API requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "storefront",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Duration of backend API requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"endpoint"},
		),
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "checkout",
				Name:      "submissions_total",
				Help:      "Order submissions by result.",
			},
			[]string{"result"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "session",
				Name:      "transitions_total",
				Help:      "Session status transitions by target status.",
			},
			[]string{"status"},
		),
		cartWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "cart",
				Name:      "persist_total",
				Help:      "Cart snapshot writes by result.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.apiRequests,
		m.apiDuration,
		m.checkouts,
		m.sessions,
		m.cartWrites,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registered collectors.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAPI records one backend call. outcome is "ok", "backend_error" or "request_error".
func (m *Metrics) ObserveAPI(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, outcome).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) CheckoutResult(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionTransition(status string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(status).Inc()
}

func (m *Metrics) CartPersist(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.cartWrites.WithLabelValues(result).Inc()
}
