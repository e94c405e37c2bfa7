package node

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the proof counters exposed on /prometheus. Each instance has
// its own registry, so counters start at zero with the service.
type Metrics struct {
	registry *prometheus.Registry
	success  prometheus.Counter
	invalid  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		success: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "POR_success",
			Help: "Successfully validated proof of reserves",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "POR_invalid",
			Help: "Invalid proof of reserves",
		}),
	}
	m.registry.MustRegister(m.success, m.invalid)
	return m
}

// Observe counts one verification outcome.
func (m *Metrics) Observe(err error) {
	if err != nil {
		m.invalid.Inc()
		return
	}
	m.success.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
