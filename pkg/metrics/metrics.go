// Package metrics exposes Prometheus instrumentation for the import
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics counts import runs and per-row outcomes.
type ImportMetrics struct {
	ImportsTotal *prometheus.CounterVec
	RowsTotal    *prometheus.CounterVec
}

// New registers the import metrics with the given registerer.
func New(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importer_imports_total",
			Help: "Completed spreadsheet imports by detected layout.",
		}, []string{"layout"}),
		RowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importer_rows_total",
			Help: "Imported rows by section and outcome.",
		}, []string{"section", "outcome"}),
	}
	reg.MustRegister(m.ImportsTotal, m.RowsTotal)
	return m
}

// ObserveRow records one committed row outcome.
func (m *ImportMetrics) ObserveRow(section, outcome string) {
	if m == nil {
		return
	}
	m.RowsTotal.WithLabelValues(section, outcome).Inc()
}

// ObserveImport records one completed import.
func (m *ImportMetrics) ObserveImport(layout string) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(layout).Inc()
}
