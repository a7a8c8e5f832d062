package replica

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "replicas"

// Metrics counts verification outcomes. A nil *Metrics records nothing.
type Metrics struct {
	verifications *prometheus.CounterVec
	bytesRead     prometheus.Counter
	deletions     *prometheus.CounterVec
}

// NewMetrics registers the replica collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verifications_total",
			Help:      "Replica verifications by outcome.",
		}, []string{"reason"}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verified_bytes_total",
			Help:      "Bytes streamed through the digest engine during verification.",
		}),
		deletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deletions_total",
			Help:      "Replica deletions by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) observeVerification(reason Reason, size int64) {
	if m == nil || reason == "" {
		return
	}
	m.verifications.WithLabelValues(string(reason)).Inc()
	if size > 0 {
		m.bytesRead.Add(float64(size))
	}
}

func (m *Metrics) observeDelete(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deletions.WithLabelValues(result).Inc()
}
