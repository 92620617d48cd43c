package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/tool-batch-server/internal/batch"
	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/executor"
)

func TestToolAdapterPassesExecutionIdentity(t *testing.T) {
	cfg, err := dsl.Load([]byte(`
server: {name: s, version: v1}
tools:
  - name: whoami
    executor:
      type: shell
      command: echo {{ .Batch }}/{{ .ToolName }}/{{ .ToolID }}/{{ .CorrelationID }}
batches:
  - name: ident
    executions:
      - id: first
        tool: whoami
`))
	require.NoError(t, err)
	runner := newRunner(t, cfg)

	resp, err := runner.Run(context.Background(), mustBatch(t, cfg, "ident"), RunOptions{CorrelationID: "corr-9"})
	require.NoError(t, err)
	assert.Equal(t, "ident/whoami/first/corr-9", recordByID(resp, "first").Result)
}

func TestToolAdapterDenied(t *testing.T) {
	cfg := loadConfig(t)
	tools, err := BuildTools(cfg, nil)
	require.NoError(t, err)

	_, err = tools["once"].Invoke(context.Background(), nil)
	require.NoError(t, err)
	_, err = tools["once"].Invoke(context.Background(), nil)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "quota", denied.Source)
	assert.Contains(t, denied.Reason, "maximum of 1 calls exceeded")
}

func TestToolAdapterTimeout(t *testing.T) {
	cfg, err := dsl.Load([]byte(`
server: {name: s, version: v1}
tools:
  - name: slow
    timeout: 50ms
    executor:
      type: shell
      command: sleep 2
batches:
  - name: wait
    executions:
      - id: only
        tool: slow
`))
	require.NoError(t, err)
	tools, err := BuildTools(cfg, nil)
	require.NoError(t, err)

	started := time.Now()
	_, err = tools["slow"].Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "timeout")
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestToolAdapterJSONOutputError(t *testing.T) {
	adapter := &toolAdapter{name: "bad", exec: executor.Shell{Command: "echo not-json"}, output: "json"}
	_, err := adapter.Invoke(context.Background(), nil)
	assert.ErrorContains(t, err, "decode json output")
}

func TestAsyncHTTPToolResolvedByWebhook(t *testing.T) {
	pending := executor.NewPendingStore()
	webhook := httptest.NewServer(&executor.WebhookHandler{Store: pending})
	defer webhook.Close()

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req protocol.ExecutorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Callback == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		go func() {
			body, _ := json.Marshal(protocol.ExecutorDecision{
				ExecutionID: req.ExecutionID,
				Status:      protocol.StatusSuccess,
				Result:      map[string]any{"tool_id": req.ToolID, "replicas": 2},
			})
			resp, err := http.Post(req.Callback.URL, "application/json", bytes.NewReader(body))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}))
	defer remote.Close()

	cfg, err := dsl.Load(fmt.Appendf(nil, `
server:
  name: s
  version: v1
  executor_webhook_url: %s/executor/webhook
tools:
  - name: scale
    executor:
      type: http
      url: %s
      async: true
      output: json
batches:
  - name: async
    executions:
      - id: scale-up
        tool: scale
`, webhook.URL, remote.URL))
	require.NoError(t, err)
	tools, err := BuildTools(cfg, pending)
	require.NoError(t, err)
	_, isAsync := tools["scale"].(batch.AsyncTool)
	require.True(t, isAsync)

	runner := &Runner{Tools: tools}
	resp, err := runner.Run(context.Background(), mustBatch(t, cfg, "async"), RunOptions{})
	require.NoError(t, err)

	rec := recordByID(resp, "scale-up")
	require.Equal(t, "completed", rec.Status, rec.Error)
	result := rec.Result.(map[string]any)
	assert.Equal(t, "scale-up", result["tool_id"])
	assert.Equal(t, json.Number("2"), result["replicas"])
	assert.Zero(t, pending.Len())
}

func TestBuildToolsRequiresPendingStoreForAsync(t *testing.T) {
	cfg := &dsl.Config{Tools: []dsl.ToolConfig{{
		Name:     "remote",
		Executor: dsl.ExecutorConfig{Type: "http", URL: "http://localhost", Async: true},
	}}}
	_, err := BuildTools(cfg, nil)
	assert.ErrorContains(t, err, "tool remote: async executor requires a pending store")
}

func TestBuildToolsUnknownApprover(t *testing.T) {
	cfg := &dsl.Config{Tools: []dsl.ToolConfig{{
		Name:      "x",
		Executor:  dsl.ExecutorConfig{Type: "shell", Command: "true"},
		Approvers: []dsl.ApproverConfig{{Type: "oracle"}},
	}}}
	_, err := BuildTools(cfg, nil)
	assert.ErrorContains(t, err, "unknown approver type: oracle")
}
