package split

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the split server.
type Metrics struct {
	Requests       *prometheus.CounterVec
	ForwardSeconds prometheus.Histogram
	HEOps          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epsnet",
			Subsystem: "split",
			Name:      "requests_total",
			Help:      "Encrypted forward requests by outcome.",
		}, []string{"status"}),
		ForwardSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "epsnet",
			Subsystem: "split",
			Name:      "forward_seconds",
			Help:      "Time to evaluate the encrypted first layer for one sample.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		HEOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epsnet",
			Subsystem: "split",
			Name:      "he_ops_total",
			Help:      "Homomorphic operations performed, by kind.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.ForwardSeconds, m.HEOps)
	}
	return m
}

func (m *Metrics) observeOps(counts map[string]int) {
	if m == nil {
		return
	}
	for op, n := range counts {
		if n > 0 {
			m.HEOps.WithLabelValues(op).Add(float64(n))
		}
	}
}

func (m *Metrics) request(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(status).Inc()
	if status == "ok" {
		m.ForwardSeconds.Observe(seconds)
	}
}
