package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not block-specific)
type Metrics struct {
	// Block lifecycle
	BlockState *prometheus.GaugeVec

	// Work cycle accounting
	CyclesTotal   *prometheus.CounterVec
	YieldsTotal   *prometheus.CounterVec
	ElementsTotal *prometheus.CounterVec
	BytesTotal    *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec

	// Error tracking
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		BlockState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "blockstream",
				Subsystem: "block",
				Name:      "state",
				Help:      "Block lifecycle state (0=created, 1=active, 2=inactive, 3=failed)",
			},
			[]string{"block"},
		),

		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockstream",
				Subsystem: "scheduler",
				Name:      "cycles_total",
				Help:      "Total work cycles dispatched per block",
			},
			[]string{"block"},
		),

		YieldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockstream",
				Subsystem: "scheduler",
				Name:      "yields_total",
				Help:      "Work cycles that returned without progress",
			},
			[]string{"block"},
		),

		ElementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockstream",
				Subsystem: "stream",
				Name:      "elements_total",
				Help:      "Total elements moved per block and direction",
			},
			[]string{"block", "direction"},
		),

		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockstream",
				Subsystem: "stream",
				Name:      "bytes_total",
				Help:      "Total bytes moved per block and direction",
			},
			[]string{"block", "direction"},
		),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "blockstream",
				Subsystem: "scheduler",
				Name:      "cycle_duration_seconds",
				Help:      "Work cycle duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"block"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "blockstream",
				Subsystem: "block",
				Name:      "errors_total",
				Help:      "Total errors reported through the logging channel",
			},
			[]string{"block", "kind"},
		),
	}
}

// RecordBlockState records a block's lifecycle state transition
func (m *Metrics) RecordBlockState(block string, state int) {
	m.BlockState.WithLabelValues(block).Set(float64(state))
}

// RecordCycle records one dispatched work cycle and its outcome
func (m *Metrics) RecordCycle(block string, duration time.Duration, progressed bool) {
	m.CyclesTotal.WithLabelValues(block).Inc()
	m.CycleDuration.WithLabelValues(block).Observe(duration.Seconds())
	if !progressed {
		m.YieldsTotal.WithLabelValues(block).Inc()
	}
}

// RecordProduced records elements committed by a producing block
func (m *Metrics) RecordProduced(block string, elements, bytes int) {
	m.ElementsTotal.WithLabelValues(block, "out").Add(float64(elements))
	m.BytesTotal.WithLabelValues(block, "out").Add(float64(bytes))
}

// RecordConsumed records elements committed by a consuming block
func (m *Metrics) RecordConsumed(block string, elements, bytes int) {
	m.ElementsTotal.WithLabelValues(block, "in").Add(float64(elements))
	m.BytesTotal.WithLabelValues(block, "in").Add(float64(bytes))
}

// RecordError records an error surfaced on the logging channel
func (m *Metrics) RecordError(block, kind string) {
	m.ErrorsTotal.WithLabelValues(block, kind).Inc()
}
