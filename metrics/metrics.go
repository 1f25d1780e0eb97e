// Package metrics exposes Prometheus metrics for plugin host operations.
//
// A nil *Registry is valid and records nothing, so hosts built without
// metrics pay no cost.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/miampf/schnuffel/hosterr"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds the plugin host metrics.
type Registry struct {
	LoadsTotal        *prometheus.CounterVec
	LoadDuration      prometheus.Histogram
	StartsTotal       *prometheus.CounterVec
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	RunningInstances  prometheus.Gauge
	ConfigChanges     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a Registry backed by a fresh Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	factory := promauto.With(r.registry)

	r.LoadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schnuffel_plugin_loads_total",
			Help: "Total number of plugin loads by result code",
		},
		[]string{"code"},
	)

	r.LoadDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schnuffel_plugin_load_duration_seconds",
			Help:    "Plugin load duration in seconds, including fetch and compilation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
	)

	r.StartsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schnuffel_plugin_starts_total",
			Help: "Total number of sandbox instances started",
		},
		[]string{"result"},
	)

	r.ExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schnuffel_plugin_executions_total",
			Help: "Total number of plugin executions by entry point and result code",
		},
		[]string{"entry", "code"},
	)

	r.ExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schnuffel_plugin_execution_duration_seconds",
			Help:    "Plugin execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"entry"},
	)

	r.RunningInstances = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "schnuffel_plugin_running_instances",
			Help: "Number of live sandbox instances",
		},
	)

	r.ConfigChanges = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schnuffel_plugin_config_changes_total",
			Help: "Total number of configuration field updates by result",
		},
		[]string{"result"},
	)

	return r
}

// GetPrometheusRegistry returns the underlying registry for exposition.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordLoad records a finished load. err is nil on success.
func (r *Registry) RecordLoad(err error, duration time.Duration) {
	if r == nil {
		return
	}
	r.LoadsTotal.WithLabelValues(resultLabel(err)).Inc()
	r.LoadDuration.Observe(duration.Seconds())
}

// RecordStart records an instance start and tracks it as running on success.
func (r *Registry) RecordStart(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.StartsTotal.WithLabelValues(ResultError).Inc()
		return
	}
	r.StartsTotal.WithLabelValues(ResultOK).Inc()
	r.RunningInstances.Inc()
}

// RecordStop records a running instance being closed.
func (r *Registry) RecordStop() {
	if r == nil {
		return
	}
	r.RunningInstances.Dec()
}

// RecordExecution records a finished call into entry. err is nil on success.
func (r *Registry) RecordExecution(entry string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	r.ExecutionsTotal.WithLabelValues(entry, resultLabel(err)).Inc()
	r.ExecutionDuration.WithLabelValues(entry).Observe(duration.Seconds())
}

// RecordConfigChange records a SetConfigField call.
func (r *Registry) RecordConfigChange(err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.ConfigChanges.WithLabelValues(ResultError).Inc()
		return
	}
	r.ConfigChanges.WithLabelValues(ResultOK).Inc()
}

// resultLabel labels a failure by its code, falling back to its kind and then
// to ResultError.
func resultLabel(err error) string {
	if err == nil {
		return ResultOK
	}
	if code := hosterr.CodeOf(err); code != "" {
		return code
	}
	if kind := hosterr.KindOf(err); kind != "" {
		return string(kind)
	}
	return ResultError
}
