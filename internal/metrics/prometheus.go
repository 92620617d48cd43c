package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus reports runner metrics using Prometheus primitives.
type Prometheus struct {
	tools         *prometheus.CounterVec
	toolDurations *prometheus.HistogramVec
	batches       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// NewPrometheus registers the runner collectors on registry.
func NewPrometheus(registry *prometheus.Registry) (*Prometheus, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	p := &Prometheus{
		tools: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_batch_tool_executions_total",
			Help: "Total number of tool executions by terminal status",
		}, []string{"batch", "tool", "status"}),
		toolDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_batch_tool_duration_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"batch", "tool"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_batch_runs_total",
			Help: "Total number of batch runs by outcome",
		}, []string{"batch", "status"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_batch_run_duration_seconds",
			Help:    "Batch run latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"batch"}),
	}

	for _, collector := range []prometheus.Collector{p.tools, p.toolDurations, p.batches, p.batchDuration} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveTool(batch, tool, status string, duration time.Duration) {
	p.tools.WithLabelValues(batch, tool, status).Inc()
	p.toolDurations.WithLabelValues(batch, tool).Observe(duration.Seconds())
}

func (p *Prometheus) ObserveBatch(batch, status string, duration time.Duration) {
	p.batches.WithLabelValues(batch, status).Inc()
	p.batchDuration.WithLabelValues(batch).Observe(duration.Seconds())
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
