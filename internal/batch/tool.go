package batch

import (
	"context"
	"errors"
	"fmt"
)

// Tool is a synchronous implementation. Invoke blocks the goroutine it runs on
// until the tool returns.
type Tool interface {
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// AsyncTool starts work and delivers the outcome later. The executor waits on
// the returned channel instead of calling Invoke.
type AsyncTool interface {
	Tool
	Start(ctx context.Context, params map[string]any) (<-chan Outcome, error)
}

// Outcome is the result delivered by an AsyncTool.
type Outcome struct {
	Result any
	Err    error
}

// Func adapts a plain function to Tool.
type Func func(ctx context.Context, params map[string]any) (any, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// ErrDuplicateTool is returned when a tool id is registered twice.
var ErrDuplicateTool = errors.New("duplicate tool id")

// errResultChannelClosed is reported when an AsyncTool closes its channel
// without sending an outcome.
var errResultChannelClosed = errors.New("tool closed its result channel without an outcome")

// ToolNotFoundError reports a tool name missing from the registry.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// InvocationError wraps a failure raised by a tool implementation.
type InvocationError struct {
	ToolName string
	Err      error
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
