package protocol

// Executor statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

// Approval decisions.
const (
	DecisionApprove = "approve"
	DecisionDeny    = "deny"
	DecisionError   = "error"
)

// Batch completion states.
const (
	BatchComplete = "complete"
	BatchPartial  = "partial"
)

// BatchInput overrides a configured batch at call time.
type BatchInput struct {
	// CorrelationID links related requests and keys the idempotency cache.
	CorrelationID string `json:"correlation_id,omitempty" jsonschema:"optional request id used for idempotency"`
	// MaxConcurrent overrides the configured concurrency cap.
	MaxConcurrent *int `json:"max_concurrent,omitempty" jsonschema:"maximum number of tools in flight, 0 for unlimited"`
	// Parameters are merged into the configured parameters per execution id.
	Parameters map[string]map[string]any `json:"parameters,omitempty" jsonschema:"per-execution parameter overrides keyed by execution id"`
}

// RunBatchInput declares an ad hoc batch.
type RunBatchInput struct {
	// CorrelationID links related requests and keys the idempotency cache.
	CorrelationID string `json:"correlation_id,omitempty" jsonschema:"optional request id used for idempotency"`
	// MaxConcurrent caps in-flight executions.
	MaxConcurrent int `json:"max_concurrent,omitempty" jsonschema:"maximum number of tools in flight, 0 for unlimited"`
	// InvocationTimeout bounds each invocation, as a Go duration.
	InvocationTimeout string `json:"invocation_timeout,omitempty" jsonschema:"per-invocation timeout such as 30s"`
	// Executions lists tool executions.
	Executions []Execution `json:"executions" jsonschema:"tool executions of the batch"`
	// Dependencies lists dependency declarations.
	Dependencies []Dependency `json:"dependencies,omitempty" jsonschema:"additional dependency declarations"`
}

// Execution declares one tool execution of an ad hoc batch.
type Execution struct {
	ID         string         `json:"id" jsonschema:"unique id within the batch"`
	Tool       string         `json:"tool" jsonschema:"registered tool name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty" jsonschema:"ids that must finish first"`
}

// Dependency declares a dependency of an ad hoc batch.
type Dependency struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Type      string `json:"type,omitempty" jsonschema:"sequential, parallel or conditional"`
	Condition string `json:"condition,omitempty" jsonschema:"expression over the source result"`
}

// BatchResponse is the JSON response returned for a batch run.
type BatchResponse struct {
	// Batch is the batch name.
	Batch string `json:"batch"`
	// CorrelationID links related requests.
	CorrelationID string `json:"correlation_id"`
	// Status is complete or partial.
	Status string `json:"status"`
	// Records lists every execution in registration order.
	Records []ExecutionRecord `json:"records"`
	// Stats aggregates the records.
	Stats BatchStats `json:"stats"`
	// Missing lists executions that never reached a terminal state.
	Missing []string `json:"missing,omitempty"`
}

// ExecutionRecord is the wire form of one execution.
type ExecutionRecord struct {
	ToolID       string   `json:"tool_id"`
	ToolName     string   `json:"tool_name"`
	ExecutionID  string   `json:"execution_id"`
	Status       string   `json:"status"`
	Result       any      `json:"result,omitempty"`
	Error        string   `json:"error,omitempty"`
	Duration     float64  `json:"duration"`
	Dependencies []string `json:"dependencies"`
}

// BatchStats is the wire form of batch statistics. Durations are seconds.
type BatchStats struct {
	TotalTools      int     `json:"total_tools"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	TotalDuration   float64 `json:"total_duration"`
	AverageDuration float64 `json:"average_duration"`
	SuccessRate     float64 `json:"success_rate"`
}

// ApproverResponse is the fixed JSON response expected from HTTP approvers.
type ApproverResponse struct {
	// Decision is the approver decision.
	Decision string `json:"decision"`
	// Reason provides additional context.
	Reason string `json:"reason,omitempty"`
}

// ExecutorTool describes the tool sent to an external executor.
type ExecutorTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ExecutorCallback tells an async executor where to post its result.
type ExecutorCallback struct {
	URL string `json:"url"`
}

// ExecutorRequest is the payload sent to HTTP executors.
type ExecutorRequest struct {
	Batch         string            `json:"batch,omitempty"`
	CorrelationID string            `json:"correlation_id"`
	ExecutionID   string            `json:"execution_id"`
	ToolID        string            `json:"tool_id"`
	Tool          ExecutorTool      `json:"tool"`
	Arguments     map[string]any    `json:"arguments"`
	TimeoutSec    int               `json:"timeout_sec,omitempty"`
	Callback      *ExecutorCallback `json:"callback,omitempty"`
}

// ExecutorResponse is the synchronous response of an HTTP executor.
type ExecutorResponse struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
}

// ExecutorDecision is the webhook payload posted by async executors.
type ExecutorDecision struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	Result      any    `json:"result,omitempty"`
}
