package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Observer is notified after every record reaches a terminal state.
type Observer interface {
	ObserveExecution(ctx context.Context, rec *Record)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers an execution observer.
func WithObserver(observer Observer) Option {
	return func(e *Executor) {
		e.observer = observer
	}
}

// WithInvocationTimeout bounds every single tool invocation.
func WithInvocationTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// WithClock overrides the time source used for start and end stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Executor runs the registered tool executions of one batch.
type Executor struct {
	tools      map[string]Tool
	executions map[string]*Record
	queue      []*Record
	graph      *Graph

	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
	now      func() time.Time
}

// NewExecutor creates an executor over the given tool registry. The registry
// must not be modified while a run is in progress.
func NewExecutor(tools map[string]Tool, opts ...Option) *Executor {
	if tools == nil {
		tools = map[string]Tool{}
	}
	e := &Executor{
		tools:      tools,
		executions: make(map[string]*Record),
		graph:      NewGraph(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddToolExecution registers an execution of toolName under toolID. Every id
// in deps becomes a sequential dependency of toolID.
func (e *Executor) AddToolExecution(toolID, toolName string, params map[string]any, deps ...string) error {
	if _, exists := e.executions[toolID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, toolID)
	}
	rec := newRecord(toolID, toolName, params, deps)
	e.executions[toolID] = rec
	e.queue = append(e.queue, rec)
	e.graph.AddTool(toolID)
	for _, dep := range deps {
		e.graph.AddDependency(Dependency{Source: dep, Target: toolID, Type: Sequential})
	}
	return nil
}

// AddDependency adds a declaration to the graph.
func (e *Executor) AddDependency(d Dependency) {
	e.graph.AddDependency(d)
}

// Graph exposes the dependency graph for introspection.
func (e *Executor) Graph() *Graph {
	return e.graph
}

// Records returns all records in registration order.
func (e *Executor) Records() []*Record {
	return append([]*Record(nil), e.queue...)
}

// Execute runs every reachable tool with no concurrency limit and returns the
// records that reached a terminal state. A result shorter than the number of
// registered tools means some dependencies could not be satisfied.
func (e *Executor) Execute(ctx context.Context) map[string]*Record {
	return e.run(ctx, 0)
}

// ExecuteParallel is Execute with at most maxConcurrent tools in flight.
// Values <= 0 disable the limit.
func (e *Executor) ExecuteParallel(ctx context.Context, maxConcurrent int) map[string]*Record {
	return e.run(ctx, maxConcurrent)
}

func (e *Executor) run(ctx context.Context, limit int) map[string]*Record {
	completed := make(map[string]*Record, len(e.executions))
	processed := make(map[string]struct{}, len(e.executions))
	running := 0
	done := make(chan *Record, len(e.executions))

	e.logger.Debug("batch run started", "tools", len(e.executions), "max_concurrent", limit)
	for len(completed) < len(e.executions) {
		for _, id := range e.graph.ReadyTools(completed) {
			if limit > 0 && running >= limit {
				break
			}
			if ctx.Err() != nil {
				break
			}
			if _, seen := processed[id]; seen {
				continue
			}
			rec, ok := e.executions[id]
			if !ok {
				continue
			}
			processed[id] = struct{}{}
			running++
			go e.dispatch(ctx, rec, done)
		}

		if running == 0 {
			e.logger.Warn("batch stalled, returning partial result",
				"completed", len(completed),
				"tools", len(e.executions),
				"canceled", ctx.Err() != nil,
			)
			break
		}

		rec := <-done
		completed[rec.ToolID] = rec
		running--
	drain:
		for {
			select {
			case rec := <-done:
				completed[rec.ToolID] = rec
				running--
			default:
				break drain
			}
		}
	}
	e.logger.Debug("batch run finished", "completed", len(completed), "tools", len(e.executions))
	return completed
}

// dispatch runs one record and hands it back on done. Panics that escape
// invoke are converted into a failed record.
func (e *Executor) dispatch(ctx context.Context, rec *Record, done chan<- *Record) {
	defer func() {
		if r := recover(); r != nil {
			rec.markRunning(e.now())
			rec.finish(nil, &InvocationError{ToolName: rec.ToolName, Err: panicError{value: r}}, e.now())
			e.logger.Error("tool task panicked", "tool_id", rec.ToolID, "tool", rec.ToolName, "panic", r)
		}
		done <- rec
	}()
	if e.invoke(ctx, rec) && e.observer != nil {
		e.observer.ObserveExecution(ctx, rec)
	}
}

// invoke reports whether rec ran. Records that already left pending are
// handed back untouched.
func (e *Executor) invoke(ctx context.Context, rec *Record) (ran bool) {
	if !rec.markRunning(e.now()) {
		return false
	}
	ran = true
	logger := e.logger.With("tool_id", rec.ToolID, "tool", rec.ToolName, "execution_id", rec.ExecutionID)
	logger.Debug("tool started")

	var (
		result any
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = &InvocationError{ToolName: rec.ToolName, Err: panicError{value: r}}
		}
		rec.finish(result, err, e.now())
		if err != nil {
			logger.Warn("tool failed", "error", err, "duration", rec.Duration())
			return
		}
		logger.Debug("tool completed", "duration", rec.Duration())
	}()

	tool, ok := e.tools[rec.ToolName]
	if !ok {
		err = &ToolNotFoundError{Name: rec.ToolName}
		return ran
	}
	result, err = e.call(withRecord(ctx, rec), tool, rec.Parameters)
	if err != nil {
		err = &InvocationError{ToolName: rec.ToolName, Err: err}
	}
	return ran
}

func (e *Executor) call(ctx context.Context, tool Tool, params map[string]any) (any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	async, ok := tool.(AsyncTool)
	if !ok {
		return tool.Invoke(ctx, params)
	}
	ch, err := async.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	select {
	case out, ok := <-ch:
		if !ok {
			return nil, errResultChannelClosed
		}
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
