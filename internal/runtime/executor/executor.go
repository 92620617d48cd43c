package executor

import "context"

// Request contains tool execution inputs.
type Request struct {
	// Batch is the running batch name.
	Batch string
	// ToolName is the registry name of the tool.
	ToolName string
	// ToolID is the execution's id within its batch.
	ToolID string
	// ExecutionID is unique per invocation and keys async callbacks.
	ExecutionID string
	// Arguments are tool arguments.
	Arguments map[string]any
	// CorrelationID links the invocation to its batch run.
	CorrelationID string
}

// Result is the outcome of an execution started with Start.
type Result struct {
	Output string
	Err    error
}

// Executor executes a tool command.
type Executor interface {
	// Execute runs the tool logic and returns its output.
	Execute(ctx context.Context, req Request) (string, error)
}

// Starter is implemented by executors whose results arrive later.
type Starter interface {
	Executor
	// Start submits the execution and returns a channel that receives
	// exactly one Result.
	Start(ctx context.Context, req Request) (<-chan Result, error)
}
