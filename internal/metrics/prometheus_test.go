package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheus(reg)
	require.NoError(t, err)

	rec.ObserveTool("deploy", "shell", "completed", 10*time.Millisecond)
	rec.ObserveBatch("deploy", "partial", time.Second)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `tool_batch_tool_executions_total{batch="deploy",status="completed",tool="shell"} 1`)
	assert.Contains(t, text, `tool_batch_runs_total{batch="deploy",status="partial"} 1`)
	assert.Contains(t, text, "tool_batch_run_duration_seconds")
}

func TestNewPrometheusRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)
	_, err = NewPrometheus(reg)
	assert.ErrorContains(t, err, "register collector")

	_, err = NewPrometheus(nil)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var rec Recorder = Noop{}
	assert.NotPanics(t, func() {
		rec.ObserveTool("b", "t", "failed", 0)
		rec.ObserveBatch("b", "complete", 0)
	})
}
