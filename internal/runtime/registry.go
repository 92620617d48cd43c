package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codex-k8s/tool-batch-server/internal/approver/http"
	"github.com/codex-k8s/tool-batch-server/internal/approver/limits"
	"github.com/codex-k8s/tool-batch-server/internal/approver/shell"
	"github.com/codex-k8s/tool-batch-server/internal/batch"
	"github.com/codex-k8s/tool-batch-server/internal/constants"
	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/approver"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/executor"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

// DeniedError reports an invocation rejected by an approver.
type DeniedError struct {
	Source string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied by %s: %s", e.Source, e.Reason)
}

// BuildTools turns the declared tools into the registry handed to batch
// executors. HTTP tools with async enabled resolve through pending.
func BuildTools(cfg *dsl.Config, pending *executor.PendingStore) (map[string]batch.Tool, error) {
	tools := make(map[string]batch.Tool, len(cfg.Tools))
	for _, toolCfg := range cfg.Tools {
		tool, err := buildTool(toolCfg, cfg.Server.ExecutorWebhookURL, pending)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", toolCfg.Name, err)
		}
		tools[toolCfg.Name] = tool
	}
	return tools, nil
}

func buildTool(cfg dsl.ToolConfig, webhookURL string, pending *executor.PendingStore) (batch.Tool, error) {
	exec, err := buildExecutor(cfg, webhookURL, pending)
	if err != nil {
		return nil, err
	}
	chain, err := buildApprovers(cfg.Approvers)
	if err != nil {
		return nil, err
	}

	timeout := timeutil.DurationOr(cfg.Timeout, 0)
	if timeout == 0 {
		timeout = timeutil.DurationOr(cfg.Executor.Timeout, 0)
	}
	adapter := &toolAdapter{
		name:    cfg.Name,
		exec:    exec,
		chain:   chain,
		timeout: timeout,
		output:  cfg.Executor.Output,
	}
	if starter, ok := exec.(executor.Starter); ok && cfg.Executor.Async {
		return &asyncToolAdapter{toolAdapter: adapter, starter: starter}, nil
	}
	return adapter, nil
}

func buildExecutor(cfg dsl.ToolConfig, webhookURL string, pending *executor.PendingStore) (executor.Executor, error) {
	switch strings.ToLower(cfg.Executor.Type) {
	case constants.ExecutorShell:
		return executor.Shell{
			Command: cfg.Executor.Command,
			Args:    cfg.Executor.Args,
			Env:     cfg.Executor.Env,
		}, nil
	case constants.ExecutorHTTP:
		if cfg.Executor.Async && pending == nil {
			return nil, errors.New("async executor requires a pending store")
		}
		return executor.HTTP{
			URL:        cfg.Executor.URL,
			Method:     cfg.Executor.Method,
			Headers:    cfg.Executor.Headers,
			Timeout:    timeutil.DurationOr(cfg.Executor.Timeout, 10*time.Second),
			Async:      cfg.Executor.Async,
			WebhookURL: webhookURL,
			Pending:    pending,
			Tool:       protocol.ExecutorTool{Name: cfg.Name, Description: cfg.Description},
		}, nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Executor.Type)
	}
}

func buildApprovers(configs []dsl.ApproverConfig) (approver.Chain, error) {
	if len(configs) == 0 {
		return approver.Chain{}, nil
	}

	var items []approver.Approver
	for _, cfg := range configs {
		timeout := timeutil.DurationOr(cfg.Timeout, 0)
		switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
		case constants.ApproverHTTP:
			client := http.Client{
				Label:   cfg.Name,
				URL:     cfg.URL,
				Method:  cfg.Method,
				Headers: cfg.Headers,
				Timeout: timeutil.DurationOr(cfg.Timeout, 10*time.Second),
			}
			items = append(items, wrapTimeout(client, timeout))
		case constants.ApproverShell:
			item := shell.Approver{
				Label:          cfg.Name,
				Command:        cfg.Command,
				Args:           cfg.Args,
				Env:            cfg.Env,
				AllowExitCodes: cfg.AllowExitCodes,
			}
			items = append(items, wrapTimeout(item, timeout))
		case constants.ApproverLimits:
			item, err := limits.NewApprover(cfg.Name, limits.Options{
				MaxTotal:      cfg.MaxTotal,
				RatePerMinute: cfg.RatePerMinute,
				PerRun:        cfg.PerRun,
				Fields:        toFieldPolicies(cfg.FieldPolicies),
			})
			if err != nil {
				return approver.Chain{}, err
			}
			items = append(items, wrapTimeout(item, timeout))
		default:
			return approver.Chain{}, fmt.Errorf("unknown approver type: %s", cfg.Type)
		}
	}
	return approver.Chain{Approvers: items}, nil
}

func wrapTimeout(item approver.Approver, timeout time.Duration) approver.Approver {
	if timeout <= 0 {
		return item
	}
	return approver.Timeout{Inner: item, Timeout: timeout}
}

func toFieldPolicies(policies map[string]dsl.FieldPolicy) map[string]limits.FieldPolicy {
	if policies == nil {
		return nil
	}
	out := make(map[string]limits.FieldPolicy, len(policies))
	for key, value := range policies {
		out[key] = limits.FieldPolicy{
			Regex:     value.Regex,
			Min:       value.Min,
			Max:       value.Max,
			MinLength: value.MinLength,
			MaxLength: value.MaxLength,
		}
	}
	return out
}

// toolAdapter runs the approver chain and then the executor.
type toolAdapter struct {
	name    string
	exec    executor.Executor
	chain   approver.Chain
	timeout time.Duration
	output  string
}

func (t *toolAdapter) Invoke(ctx context.Context, params map[string]any) (any, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	req, err := t.prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	output, err := t.exec.Execute(ctx, req)
	if err != nil {
		return nil, executionError(ctx, output, err)
	}
	return t.decode(output)
}

// prepare builds the executor request and runs the approver chain.
func (t *toolAdapter) prepare(ctx context.Context, params map[string]any) (executor.Request, error) {
	info := runInfoFromContext(ctx)
	req := executor.Request{
		Batch:         info.batch,
		ToolName:      t.name,
		Arguments:     params,
		CorrelationID: info.correlationID,
	}
	if rec, ok := batch.RecordFromContext(ctx); ok {
		req.ToolID = rec.ToolID
		req.ExecutionID = rec.ExecutionID
	}
	if len(t.chain.Approvers) == 0 {
		return req, nil
	}
	decision, err := t.chain.Approve(ctx, approver.Request{
		Batch:         req.Batch,
		ToolName:      t.name,
		ToolID:        req.ToolID,
		ExecutionID:   req.ExecutionID,
		Arguments:     params,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return req, fmt.Errorf("approval failed: %w", err)
	}
	if !decision.Allowed {
		return req, &DeniedError{Source: decision.Source, Reason: decision.Reason}
	}
	return req, nil
}

func (t *toolAdapter) decode(output string) (any, error) {
	if t.output != constants.OutputJSON {
		return output, nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(output)))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode json output: %w", err)
	}
	return value, nil
}

// asyncToolAdapter lets the scheduler wait on webhook results without
// blocking in Invoke.
type asyncToolAdapter struct {
	*toolAdapter
	starter executor.Starter
}

func (t *asyncToolAdapter) Start(ctx context.Context, params map[string]any) (<-chan batch.Outcome, error) {
	cancel := context.CancelFunc(func() {})
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	req, err := t.prepare(ctx, params)
	if err != nil {
		cancel()
		return nil, err
	}
	results, err := t.starter.Start(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan batch.Outcome, 1)
	go func() {
		defer close(out)
		defer cancel()
		result, ok := <-results
		if !ok {
			err := ctx.Err()
			if err == nil {
				err = errors.New("execution result channel closed")
			}
			out <- batch.Outcome{Err: err}
			return
		}
		if result.Err != nil {
			out <- batch.Outcome{Err: executionError(ctx, result.Output, result.Err)}
			return
		}
		value, err := t.decode(result.Output)
		out <- batch.Outcome{Result: value, Err: err}
	}()
	return out, nil
}

func executionError(ctx context.Context, output string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timeout: %w", context.DeadlineExceeded)
	}
	output = strings.TrimSpace(output)
	if output == "" || output == err.Error() {
		return err
	}
	return fmt.Errorf("%w: %s", err, output)
}
