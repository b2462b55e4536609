package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mfkiwl/blockstream/errors"
)

// MetricsRegistrar defines the interface for registering block-specific metrics
type MetricsRegistrar interface {
	RegisterCounter(blockName, metricName string, counter prometheus.Counter) error
	RegisterGauge(blockName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(blockName, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(blockName, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(blockName, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(blockName, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(blockName, metricName string) bool
}

// MetricsRegistry manages the registration and lifecycle of metrics
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a new metrics registry with core platform metrics
func NewMetricsRegistry() *MetricsRegistry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &MetricsRegistry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	// Initialize and register core metrics
	registry.Metrics = NewMetrics()
	registry.registerCoreMetrics()

	// Add Go runtime metrics
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core platform metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// registerCoreMetrics registers the shared platform collectors
func (r *MetricsRegistry) registerCoreMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.BlockState,
		r.Metrics.CyclesTotal,
		r.Metrics.YieldsTotal,
		r.Metrics.ElementsTotal,
		r.Metrics.BytesTotal,
		r.Metrics.CycleDuration,
		r.Metrics.ErrorsTotal,
	)
}

// register adds a collector under a unique service-scoped key
func (r *MetricsRegistry) register(blockName, metricName, kind string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", blockName, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for block %s", metricName, blockName),
			"MetricsRegistry", kind, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", kind,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", kind,
			"failed to register collector with prometheus")
	}

	r.registeredMetrics[key] = c
	return nil
}

// RegisterCounter registers a counter metric for a block
func (r *MetricsRegistry) RegisterCounter(blockName, metricName string, counter prometheus.Counter) error {
	return r.register(blockName, metricName, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for a block
func (r *MetricsRegistry) RegisterGauge(blockName, metricName string, gauge prometheus.Gauge) error {
	return r.register(blockName, metricName, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for a block
func (r *MetricsRegistry) RegisterHistogram(blockName, metricName string, histogram prometheus.Histogram) error {
	return r.register(blockName, metricName, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a labeled counter metric for a block
func (r *MetricsRegistry) RegisterCounterVec(blockName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(blockName, metricName, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec registers a labeled gauge metric for a block
func (r *MetricsRegistry) RegisterGaugeVec(blockName, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(blockName, metricName, "RegisterGaugeVec", gaugeVec)
}

// RegisterHistogramVec registers a labeled histogram metric for a block
func (r *MetricsRegistry) RegisterHistogramVec(blockName, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register(blockName, metricName, "RegisterHistogramVec", histogramVec)
}

// Unregister removes a previously registered metric. Returns true if the
// metric existed and was removed.
func (r *MetricsRegistry) Unregister(blockName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", blockName, metricName)
	c, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	delete(r.registeredMetrics, key)
	return r.prometheusRegistry.Unregister(c)
}
