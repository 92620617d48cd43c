package audit

import (
	"context"
	"log/slog"
)

// Audit event types.
const (
	EventBatchStart = "batch_start"
	EventBatchDone  = "batch_done"
	EventToolOK     = "tool_ok"
	EventToolError  = "tool_error"
	EventCacheHit   = "cache_hit"
)

// Event represents an audit entry for batch runs and tool executions.
type Event struct {
	// Type describes the event kind.
	Type string
	// Batch is the batch name.
	Batch string
	// ToolID is the execution id within the batch.
	ToolID string
	// Tool is the tool name.
	Tool string
	// CorrelationID links related events.
	CorrelationID string
	// Status is the record or batch status.
	Status string
	// Reason provides additional context.
	Reason string
}

// Logger records audit events.
type Logger interface {
	// Record stores an audit event.
	Record(ctx context.Context, event Event)
}

// StdLogger writes audit events to slog.
type StdLogger struct {
	logger *slog.Logger
}

// New returns a StdLogger.
func New(logger *slog.Logger) *StdLogger {
	return &StdLogger{logger: logger}
}

// Record logs an audit event.
func (l *StdLogger) Record(ctx context.Context, event Event) {
	if l == nil || l.logger == nil {
		return
	}
	attrs := []any{
		"type", event.Type,
		"batch", event.Batch,
		"correlation_id", event.CorrelationID,
	}
	if event.ToolID != "" {
		attrs = append(attrs, "tool_id", event.ToolID, "tool", event.Tool)
	}
	if event.Status != "" {
		attrs = append(attrs, "status", event.Status)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	l.logger.InfoContext(ctx, "audit", attrs...)
}
