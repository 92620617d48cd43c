package batch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Record.
type Status string

// Record lifecycle states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record tracks a single tool execution within a batch.
type Record struct {
	// ToolID is the caller-chosen unique key of the execution.
	ToolID string
	// ToolName selects the implementation in the registry.
	ToolName string
	// ExecutionID is generated per record.
	ExecutionID string
	// Parameters are passed to the implementation.
	Parameters map[string]any
	// Dependencies lists tool ids passed at registration.
	Dependencies []string

	mu      sync.RWMutex
	status  Status
	result  any
	failure string
	start   time.Time
	end     time.Time
}

func newRecord(toolID, toolName string, params map[string]any, deps []string) *Record {
	if params == nil {
		params = map[string]any{}
	}
	return &Record{
		ToolID:       toolID,
		ToolName:     toolName,
		ExecutionID:  uuid.NewString(),
		Parameters:   params,
		Dependencies: append([]string(nil), deps...),
		status:       StatusPending,
	}
}

// Status returns the current lifecycle state.
func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Result returns the tool output. ok is false unless the record completed.
func (r *Record) Result() (result any, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status != StatusCompleted {
		return nil, false
	}
	return r.result, true
}

// Failure returns the error message. ok is false unless the record failed.
func (r *Record) Failure() (message string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status != StatusFailed {
		return "", false
	}
	return r.failure, true
}

// StartTime returns when the record started running.
func (r *Record) StartTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.start
}

// EndTime returns when the record reached a terminal state.
func (r *Record) EndTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.end
}

// Duration is EndTime - StartTime, or zero when either is unset.
func (r *Record) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.start.IsZero() || r.end.IsZero() {
		return 0
	}
	return r.end.Sub(r.start)
}

// markRunning moves a pending record to running. It returns false for any
// other state so a record is never dispatched twice.
func (r *Record) markRunning(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return false
	}
	r.status = StatusRunning
	r.start = now
	return true
}

// finish moves a running record to completed or failed.
func (r *Record) finish(result any, err error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return
	}
	r.end = now
	if err != nil {
		r.status = StatusFailed
		r.failure = err.Error()
		return
	}
	r.status = StatusCompleted
	r.result = result
}

// recordJSON is the wire form used by MCP responses and the CLI.
type recordJSON struct {
	ToolID       string   `json:"tool_id"`
	ToolName     string   `json:"tool_name"`
	ExecutionID  string   `json:"execution_id"`
	Status       Status   `json:"status"`
	Result       any      `json:"result,omitempty"`
	Error        string   `json:"error,omitempty"`
	Duration     float64  `json:"duration"`
	Dependencies []string `json:"dependencies"`
}

// MarshalJSON encodes the record with duration in seconds.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ToolID:       r.ToolID,
		ToolName:     r.ToolName,
		ExecutionID:  r.ExecutionID,
		Status:       r.Status(),
		Duration:     r.Duration().Seconds(),
		Dependencies: r.Dependencies,
	}
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	if result, ok := r.Result(); ok {
		out.Result = result
	}
	if message, ok := r.Failure(); ok {
		out.Error = message
	}
	return json.Marshal(out)
}
