// Package metrics records batch and tool execution metrics.
package metrics

import "time"

// Recorder defines the metric hooks used by the batch runner.
type Recorder interface {
	ObserveTool(batch, tool, status string, duration time.Duration)
	ObserveBatch(batch, status string, duration time.Duration)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) ObserveTool(string, string, string, time.Duration) {}
func (Noop) ObserveBatch(string, string, time.Duration)        {}
