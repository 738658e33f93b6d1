package app

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/egaotan/solana-lending/lending"
)

// Metrics counts finished operations by kind and status.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	signatures *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lending",
			Name:      "operations_total",
			Help:      "Lending operations by kind and result.",
		}, []string{"kind", "result"}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lending",
			Name:      "transactions_total",
			Help:      "Confirmed lending transactions by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.operations, m.signatures)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Record(record *lending.Record) {
	m.operations.WithLabelValues(string(record.Kind), string(record.Status)).Inc()
	m.signatures.WithLabelValues(string(record.Kind)).Add(float64(len(record.Signatures)))
}
