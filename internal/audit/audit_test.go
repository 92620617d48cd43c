package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.New(slog.NewJSONHandler(&buf, nil)))
	logger.Record(context.Background(), Event{
		Type:          EventToolError,
		Batch:         "deploy",
		ToolID:        "build",
		Tool:          "shell",
		CorrelationID: "c1",
		Status:        "failed",
		Reason:        "exit status 1",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit", entry["msg"])
	assert.Equal(t, EventToolError, entry["type"])
	assert.Equal(t, "build", entry["tool_id"])
	assert.Equal(t, "exit status 1", entry["reason"])
}

func TestRecordOmitsEmptyToolFields(t *testing.T) {
	var buf bytes.Buffer
	New(slog.New(slog.NewJSONHandler(&buf, nil))).Record(context.Background(), Event{Type: EventBatchStart, Batch: "deploy"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "tool_id")
	assert.NotContains(t, entry, "reason")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *StdLogger
	assert.NotPanics(t, func() { l.Record(context.Background(), Event{}) })
}
