package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codex-k8s/tool-batch-server/internal/audit"
	"github.com/codex-k8s/tool-batch-server/internal/batch"
	"github.com/codex-k8s/tool-batch-server/internal/coordinator"
	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/idempotency"
	"github.com/codex-k8s/tool-batch-server/internal/metrics"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
	"github.com/codex-k8s/tool-batch-server/internal/security"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

// Runner executes batches against a tool registry.
type Runner struct {
	// Tools is the registry handed to every batch executor.
	Tools map[string]batch.Tool
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records batch and tool events.
	Audit audit.Logger
	// Metrics observes batch and tool outcomes.
	Metrics metrics.Recorder
	// Cache stores complete responses.
	Cache *idempotency.Cache[protocol.BatchResponse]
	// CacheKeyStrategy selects how cache keys are computed.
	CacheKeyStrategy string
	// Coordinator serialises runs of the same named batch.
	Coordinator coordinator.Coordinator
	// LeaseTTL bounds how long a batch lease is held.
	LeaseTTL time.Duration
	// LeaseWait bounds how long a run waits for its lease.
	LeaseWait time.Duration
}

// RunOptions tunes a single batch run.
type RunOptions struct {
	// CorrelationID is the caller supplied request id, if any.
	CorrelationID string
	// MaxConcurrent overrides the batch concurrency cap.
	MaxConcurrent *int
	// Parameters are merged over configured parameters per execution id.
	Parameters map[string]map[string]any
	// Exclusive takes the coordination lease for the batch name.
	Exclusive bool
}

// Run executes b and returns its response. Tool failures and unreachable
// executions are reported in the response; errors are returned only when
// the batch could not be started.
func (r *Runner) Run(ctx context.Context, b dsl.BatchConfig, opts RunOptions) (protocol.BatchResponse, error) {
	correlationID, provided := opts.CorrelationID, opts.CorrelationID != ""
	if !provided {
		correlationID = newCorrelationID()
	}
	logger := r.logger().With("batch", b.Name, "correlation_id", correlationID)

	cacheKey := r.cacheKey(b.Name, correlationID, provided, cacheArguments(b, opts), logger)
	if cached, ok := r.Cache.Get(cacheKey); ok && cacheKey != "" {
		cached.CorrelationID = correlationID
		logger.Info("batch cache hit")
		r.record(ctx, audit.Event{Type: audit.EventCacheHit, Batch: b.Name, CorrelationID: correlationID, Status: cached.Status})
		return cached, nil
	}

	if opts.Exclusive && r.Coordinator != nil {
		lease, err := r.acquire(ctx, b.Name)
		if err != nil {
			return protocol.BatchResponse{}, err
		}
		stopRenew := r.keepAlive(ctx, lease, logger)
		defer func() {
			stopRenew()
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release batch lease failed", "error", err)
			}
		}()
	}

	observer := &runObserver{runner: r, batch: b.Name, correlationID: correlationID}
	exec := batch.NewExecutor(r.Tools,
		batch.WithLogger(logger),
		batch.WithObserver(observer),
		batch.WithInvocationTimeout(timeutil.DurationOr(b.InvocationTimeout, 0)),
	)
	if err := register(exec, b, opts.Parameters, logger); err != nil {
		return protocol.BatchResponse{}, fmt.Errorf("batch %s: %w", b.Name, err)
	}

	maxConcurrent := b.MaxConcurrent
	if opts.MaxConcurrent != nil {
		maxConcurrent = *opts.MaxConcurrent
	}
	logger.Info("batch started", "executions", len(b.Executions), "max_concurrent", maxConcurrent, "overrides", security.RedactParameters(opts.Parameters))
	r.record(ctx, audit.Event{Type: audit.EventBatchStart, Batch: b.Name, CorrelationID: correlationID})

	runCtx, cancel := context.WithCancel(withRunInfo(ctx, runInfo{batch: b.Name, correlationID: correlationID}))
	defer cancel()
	started := time.Now()
	completed := exec.ExecuteParallel(runCtx, maxConcurrent)
	elapsed := time.Since(started)

	resp := buildResponse(b.Name, correlationID, exec, completed)
	r.metrics().ObserveBatch(b.Name, resp.Status, elapsed)
	r.record(ctx, audit.Event{Type: audit.EventBatchDone, Batch: b.Name, CorrelationID: correlationID, Status: resp.Status})
	logger.Info("batch finished",
		"status", resp.Status,
		"completed", resp.Stats.Completed,
		"failed", resp.Stats.Failed,
		"missing", resp.Missing,
		"duration", elapsed,
	)

	if resp.Status == protocol.BatchComplete && cacheKey != "" {
		r.Cache.Set(cacheKey, resp)
	}
	return resp, nil
}

func register(exec *batch.Executor, b dsl.BatchConfig, overrides map[string]map[string]any, logger *slog.Logger) error {
	for _, item := range b.Executions {
		params := mergeParameters(item.Parameters, overrides[item.ID])
		if err := exec.AddToolExecution(item.ID, item.Tool, params, item.DependsOn...); err != nil {
			return err
		}
	}
	// Gating conditions are re-evaluated on every scheduling pass, so each
	// failing declaration is reported once.
	var (
		mu       sync.Mutex
		reported = map[dsl.DependencyConfig]struct{}{}
	)
	deps, err := dsl.Dependencies(b, func(dep dsl.DependencyConfig, err error) {
		mu.Lock()
		_, seen := reported[dep]
		reported[dep] = struct{}{}
		mu.Unlock()
		if seen {
			logger.Debug("condition evaluation failed", "source", dep.Source, "target", dep.Target, "error", err)
			return
		}
		logger.Warn("condition evaluation failed", "source", dep.Source, "target", dep.Target, "error", err)
	})
	if err != nil {
		return err
	}
	for _, dep := range deps {
		exec.AddDependency(dep)
	}
	return nil
}

func mergeParameters(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

func (r *Runner) acquire(ctx context.Context, name string) (coordinator.Lease, error) {
	waitCtx := ctx
	if r.LeaseWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.LeaseWait)
		defer cancel()
	}
	lease, err := r.Coordinator.Acquire(waitCtx, name, r.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("batch %s is already running: %w", name, err)
	}
	return lease, nil
}

// keepAlive renews lease every third of its ttl until the returned stop
// function is called. A lost lease is logged and ends renewal.
func (r *Runner) keepAlive(ctx context.Context, lease coordinator.Lease, logger *slog.Logger) (stop func()) {
	ttl := r.LeaseTTL
	if ttl <= 0 {
		ttl = coordinator.DefaultTTL
	}
	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				err := lease.Renew(renewCtx, ttl)
				if err == nil {
					continue
				}
				if errors.Is(err, coordinator.ErrLeaseLost) {
					logger.Error("batch lease lost", "error", err)
					return
				}
				if renewCtx.Err() == nil {
					logger.Warn("renew batch lease failed", "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) cacheKey(name, correlationID string, provided bool, args map[string]any, logger *slog.Logger) string {
	if r.Cache == nil {
		return ""
	}
	key, err := idempotency.Key(name, correlationID, provided, args, r.CacheKeyStrategy)
	if err != nil {
		logger.Warn("cache key build failed", "error", err)
		return ""
	}
	return key
}

// cacheArguments is everything that changes the outcome of a run.
func cacheArguments(b dsl.BatchConfig, opts RunOptions) map[string]any {
	executions := make([]any, 0, len(b.Executions))
	for _, item := range b.Executions {
		deps := make([]any, 0, len(item.DependsOn))
		for _, dep := range item.DependsOn {
			deps = append(deps, dep)
		}
		executions = append(executions, map[string]any{
			"id":         item.ID,
			"tool":       item.Tool,
			"parameters": mergeParameters(item.Parameters, opts.Parameters[item.ID]),
			"depends_on": deps,
		})
	}
	dependencies := make([]any, 0, len(b.Dependencies))
	for _, dep := range b.Dependencies {
		dependencies = append(dependencies, map[string]any{
			"source":    dep.Source,
			"target":    dep.Target,
			"type":      dep.Type,
			"condition": dep.Condition,
		})
	}
	maxConcurrent := b.MaxConcurrent
	if opts.MaxConcurrent != nil {
		maxConcurrent = *opts.MaxConcurrent
	}
	return map[string]any{
		"executions":         executions,
		"dependencies":       dependencies,
		"max_concurrent":     maxConcurrent,
		"invocation_timeout": b.InvocationTimeout,
	}
}

func (r *Runner) record(ctx context.Context, event audit.Event) {
	if r.Audit != nil {
		r.Audit.Record(ctx, event)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (r *Runner) metrics() metrics.Recorder {
	if r.Metrics != nil {
		return r.Metrics
	}
	return metrics.Noop{}
}

// runObserver forwards terminal records to metrics and audit.
type runObserver struct {
	runner        *Runner
	batch         string
	correlationID string
}

func (o *runObserver) ObserveExecution(ctx context.Context, rec *batch.Record) {
	status := rec.Status()
	o.runner.metrics().ObserveTool(o.batch, rec.ToolName, string(status), rec.Duration())

	event := audit.Event{
		Type:          audit.EventToolOK,
		Batch:         o.batch,
		ToolID:        rec.ToolID,
		Tool:          rec.ToolName,
		CorrelationID: o.correlationID,
		Status:        string(status),
	}
	if msg, failed := rec.Failure(); failed {
		event.Type = audit.EventToolError
		event.Reason = msg
	}
	o.runner.record(ctx, event)
}

// runInfo identifies the batch run a tool invocation belongs to.
type runInfo struct {
	batch         string
	correlationID string
}

type runInfoKey struct{}

func withRunInfo(ctx context.Context, info runInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

func runInfoFromContext(ctx context.Context) runInfo {
	info, _ := ctx.Value(runInfoKey{}).(runInfo)
	return info
}

func newCorrelationID() string {
	return "corr-" + uuid.NewString()
}
