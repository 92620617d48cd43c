package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codex-k8s/tool-batch-server/internal/protocol"
)

// HTTP calls an external HTTP executor.
type HTTP struct {
	// URL is the executor endpoint.
	URL string
	// Method overrides HTTP method.
	Method string
	// Headers adds HTTP headers.
	Headers map[string]string
	// Timeout is the HTTP client timeout.
	Timeout time.Duration
	// Async enables webhook-based execution flow.
	Async bool
	// WebhookURL is the callback URL announced to async executors.
	WebhookURL string
	// Pending stores async execution requests.
	Pending *PendingStore
	// Tool describes the tool metadata sent to external executor.
	Tool protocol.ExecutorTool
	// Client overrides the HTTP client.
	Client *http.Client
}

// Execute sends the request and waits for its result.
func (h HTTP) Execute(ctx context.Context, req Request) (string, error) {
	ch, err := h.Start(ctx, req)
	if err != nil {
		return "", err
	}
	return await(ctx, ch)
}

// Start sends the request. Synchronous answers are delivered on the returned
// channel right away; async executors that answer 202 or "pending" resolve it
// later through the webhook.
func (h HTTP) Start(ctx context.Context, req Request) (<-chan Result, error) {
	if strings.TrimSpace(h.URL) == "" {
		return nil, errors.New("executor url is empty")
	}
	if h.Async {
		if strings.TrimSpace(h.WebhookURL) == "" {
			return nil, errors.New("executor webhook url is empty")
		}
		if h.Pending == nil {
			return nil, errors.New("executor async store is not configured")
		}
		if strings.TrimSpace(req.ExecutionID) == "" {
			return nil, errors.New("async execution requires an execution id")
		}
	}

	payload := protocol.ExecutorRequest{
		Batch:         req.Batch,
		CorrelationID: req.CorrelationID,
		ExecutionID:   req.ExecutionID,
		ToolID:        req.ToolID,
		Tool:          h.Tool,
		Arguments:     req.Arguments,
		TimeoutSec:    remainingSeconds(ctx),
	}
	if h.Async {
		payload.Callback = &protocol.ExecutorCallback{URL: h.WebhookURL}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(h.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range h.Headers {
		request.Header.Set(key, value)
	}

	var pendingCh <-chan Result
	if h.Async {
		ch, err := h.Pending.Register(req.ExecutionID)
		if err != nil {
			return nil, err
		}
		pendingCh = ch
	}
	cancelPending := func() {
		if h.Async {
			h.Pending.Cancel(req.ExecutionID)
		}
	}

	resp, err := h.client().Do(request)
	if err != nil {
		cancelPending()
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	dataTrimmed := strings.TrimSpace(string(data))

	if h.Async && resp.StatusCode == http.StatusAccepted {
		return h.watch(ctx, req.ExecutionID, pendingCh), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cancelPending()
		return nil, fmt.Errorf("executor status %d: %s", resp.StatusCode, dataTrimmed)
	}

	var parsed protocol.ExecutorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && strings.TrimSpace(parsed.Status) != "" {
		status := strings.ToLower(strings.TrimSpace(parsed.Status))
		if status == protocol.StatusPending {
			if h.Async {
				return h.watch(ctx, req.ExecutionID, pendingCh), nil
			}
			return nil, errors.New("executor returned pending status")
		}
		cancelPending()
		result := stringifyResult(parsed.Result)
		switch status {
		case protocol.StatusSuccess:
			if result == "" {
				result = "ok"
			}
			return resolved(Result{Output: result}), nil
		case protocol.StatusError:
			if result == "" {
				result = "executor error"
			}
			return resolved(Result{Output: result, Err: errors.New(result)}), nil
		default:
			return nil, fmt.Errorf("unknown executor status: %s", status)
		}
	}

	cancelPending()
	return resolved(Result{Output: dataTrimmed}), nil
}

func (h HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// watch forwards the webhook result and releases the pending slot when ctx
// ends first.
func (h HTTP) watch(ctx context.Context, executionID string, pendingCh <-chan Result) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		select {
		case result, ok := <-pendingCh:
			if ok {
				out <- result
			}
		case <-ctx.Done():
			h.Pending.Cancel(executionID)
		}
	}()
	return out
}

func await(ctx context.Context, ch <-chan Result) (string, error) {
	select {
	case result, ok := <-ch:
		if !ok {
			return "", errors.New("execution webhook channel closed")
		}
		return result.Output, result.Err
	case <-ctx.Done():
		return "execution timeout", ctx.Err()
	}
}

func resolved(result Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- result
	close(ch)
	return ch
}

func remainingSeconds(ctx context.Context) int {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	if sec := int(remaining.Seconds()); sec >= 1 {
		return sec
	}
	return 1
}

func stringifyResult(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return strings.TrimSpace(string(data))
	}
}
