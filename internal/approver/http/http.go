// Package http asks an external HTTP service to approve each invocation.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codex-k8s/tool-batch-server/internal/protocol"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/approver"
	"github.com/codex-k8s/tool-batch-server/internal/security"
)

const maxResponseBytes = 1 << 20

// Client calls external HTTP approvers.
type Client struct {
	Label   string
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Request is the payload sent to HTTP approvers.
type Request struct {
	Batch         string `json:"batch,omitempty"`
	CorrelationID string `json:"correlation_id"`
	Tool          string `json:"tool"`
	ToolID        string `json:"tool_id,omitempty"`
	ExecutionID   string `json:"execution_id,omitempty"`
	// Arguments are redacted tool arguments.
	Arguments map[string]any `json:"arguments"`
}

// defaultReasons fills in an empty reason per decision.
var defaultReasons = map[string]string{
	protocol.DecisionApprove: "approved",
	protocol.DecisionDeny:    "denied",
	protocol.DecisionError:   "approver error",
}

// Name returns approver name for audit and logging.
func (c Client) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return "http"
}

func (c Client) deny(reason string) approver.Decision {
	return approver.Decision{Allowed: false, Reason: reason, Source: c.Name()}
}

// Approve posts the redacted invocation and maps the reply to a decision.
// Transport failures and malformed replies deny with an error.
func (c Client) Approve(ctx context.Context, req approver.Request) (approver.Decision, error) {
	if c.URL == "" {
		return c.deny("approver url is empty"), nil
	}

	body, err := json.Marshal(Request{
		Batch:         req.Batch,
		CorrelationID: req.CorrelationID,
		Tool:          req.ToolName,
		ToolID:        req.ToolID,
		ExecutionID:   req.ExecutionID,
		Arguments:     security.RedactArguments(req.Arguments),
	})
	if err != nil {
		return c.deny("failed to encode request"), err
	}

	method := c.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.URL, bytes.NewReader(body))
	if err != nil {
		return c.deny("failed to build request"), err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range c.Headers {
		httpReq.Header.Set(key, value)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return c.deny("approver request failed"), err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.deny(fmt.Sprintf("approver status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))), nil
	}

	var parsed protocol.ApproverResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return c.deny("invalid approver response"), err
	}

	decision := strings.ToLower(strings.TrimSpace(parsed.Decision))
	fallback, known := defaultReasons[decision]
	if !known {
		return c.deny("unknown approver decision"), fmt.Errorf("unknown approver decision: %s", decision)
	}
	reason := strings.TrimSpace(parsed.Reason)
	if reason == "" {
		reason = fallback
	}
	return approver.Decision{Allowed: decision == protocol.DecisionApprove, Reason: reason, Source: c.Name()}, nil
}
