package dsl

// Config is the top-level YAML configuration.
type Config struct {
	// Server describes the MCP server settings.
	Server ServerConfig `yaml:"server"`
	// Tools lists the tool implementations available to batches.
	Tools []ToolConfig `yaml:"tools"`
	// Batches lists named batches exposed as MCP tools.
	Batches []BatchConfig `yaml:"batches"`
}

// ServerConfig defines MCP server settings.
type ServerConfig struct {
	// Name is the MCP server name.
	Name string `yaml:"name"`
	// Version is the MCP server version.
	Version string `yaml:"version"`
	// Transport selects the server transport ("http" or "stdio").
	Transport string `yaml:"transport"`
	// ShutdownTimeout overrides graceful shutdown duration.
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// Idempotency configures optional batch response caching.
	Idempotency IdempotencyConfig `yaml:"idempotency_cache"`
	// HTTP configures HTTP transport.
	HTTP HTTPConfig `yaml:"http"`
	// ExecutorWebhookURL is the callback URL handed to async HTTP executors.
	ExecutorWebhookURL string `yaml:"executor_webhook_url"`
	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
	// Coordination configures cross-replica batch leases.
	Coordination CoordinationConfig `yaml:"coordination"`
	// AdHocBatches exposes the run_batch MCP tool.
	AdHocBatches bool `yaml:"ad_hoc_batches"`
	// StartupHooks run before the server starts.
	StartupHooks []HookConfig `yaml:"startup_hooks"`
}

// HookConfig defines a command executed at startup.
type HookConfig struct {
	// Command is the executable or shell command.
	Command string `yaml:"command"`
	// Args contains command arguments.
	Args []string `yaml:"args"`
	// Env adds environment variables.
	Env map[string]string `yaml:"env"`
	// Timeout limits hook execution time.
	Timeout string `yaml:"timeout"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Path is the MCP HTTP endpoint path.
	Path string `yaml:"path"`
	// WebhookPath is where async executors post their results.
	WebhookPath string `yaml:"webhook_path"`
	// ReadTimeout limits request read time.
	ReadTimeout string `yaml:"read_timeout"`
	// WriteTimeout limits response write time.
	WriteTimeout string `yaml:"write_timeout"`
	// IdleTimeout controls idle connections.
	IdleTimeout string `yaml:"idle_timeout"`
	// Stateless disables session tracking.
	Stateless bool `yaml:"stateless"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled mounts the metrics handler on the HTTP server.
	Enabled bool `yaml:"enabled"`
	// Path is the metrics route.
	Path string `yaml:"path"`
}

// CoordinationConfig configures leases taken around named batch runs.
type CoordinationConfig struct {
	// Backend selects "none", "memory" or "redis".
	Backend string `yaml:"backend"`
	// RedisURL is required for the redis backend.
	RedisURL string `yaml:"redis_url"`
	// Prefix namespaces lease keys.
	Prefix string `yaml:"prefix"`
	// LeaseTTL bounds how long a lease is held.
	LeaseTTL string `yaml:"lease_ttl"`
	// WaitTimeout bounds how long a run waits for the lease.
	WaitTimeout string `yaml:"wait_timeout"`
}

// ToolConfig declares a tool implementation registered under Name.
type ToolConfig struct {
	// Name is the registry key referenced by executions.
	Name string `yaml:"name"`
	// Description explains the tool.
	Description string `yaml:"description"`
	// Timeout is the tool execution timeout.
	Timeout string `yaml:"timeout"`
	// Executor describes how the tool is executed.
	Executor ExecutorConfig `yaml:"executor"`
	// Approvers lists approval steps run before every invocation.
	Approvers []ApproverConfig `yaml:"approvers"`
}

// ExecutorConfig defines how to execute a tool.
type ExecutorConfig struct {
	// Type selects executor implementation.
	Type string `yaml:"type"`
	// Command is the executable or shell command.
	Command string `yaml:"command"`
	// Args contains command arguments.
	Args []string `yaml:"args"`
	// Env adds environment variables for execution.
	Env map[string]string `yaml:"env"`
	// URL is the HTTP executor endpoint.
	URL string `yaml:"url"`
	// Method overrides the HTTP method.
	Method string `yaml:"method"`
	// Headers adds HTTP headers.
	Headers map[string]string `yaml:"headers"`
	// Async enables webhook-based HTTP execution.
	Async bool `yaml:"async"`
	// Timeout is the executor timeout.
	Timeout string `yaml:"timeout"`
	// Output selects how output is returned ("text" or "json").
	Output string `yaml:"output"`
}

// ApproverConfig defines a single approver configuration.
type ApproverConfig struct {
	// Type selects approver implementation.
	Type string `yaml:"type"`
	// Name is a human-friendly approver name.
	Name string `yaml:"name"`
	// Timeout limits approver execution time.
	Timeout string `yaml:"timeout"`
	// URL defines HTTP approver endpoint.
	URL string `yaml:"url"`
	// Method overrides HTTP method.
	Method string `yaml:"method"`
	// Headers adds HTTP headers.
	Headers map[string]string `yaml:"headers"`
	// Command is a shell approver command.
	Command string `yaml:"command"`
	// Args are shell approver arguments.
	Args []string `yaml:"args"`
	// Env adds environment variables for the approver.
	Env map[string]string `yaml:"env"`
	// MaxTotal limits total tool calls.
	MaxTotal int `yaml:"max_total"`
	// RatePerMinute limits requests per minute.
	RatePerMinute int `yaml:"rate_per_minute"`
	// PerRun counts max_total per batch run instead of per process.
	PerRun bool `yaml:"per_run"`
	// FieldPolicies validates input fields.
	FieldPolicies map[string]FieldPolicy `yaml:"fields"`
	// AllowExitCodes defines allowed shell exit codes.
	AllowExitCodes []int `yaml:"allow_exit_codes"`
}

// FieldPolicy defines validation rules for tool input fields.
type FieldPolicy struct {
	// Regex validates string value format.
	Regex string `yaml:"regex"`
	// Min sets numeric minimum.
	Min *float64 `yaml:"min"`
	// Max sets numeric maximum.
	Max *float64 `yaml:"max"`
	// MinLength sets string minimum length.
	MinLength *int `yaml:"min_length"`
	// MaxLength sets string maximum length.
	MaxLength *int `yaml:"max_length"`
}

// BatchConfig declares a named batch of tool executions.
type BatchConfig struct {
	// Name is the batch name and MCP tool name.
	Name string `yaml:"name"`
	// Description explains the batch for the agent.
	Description string `yaml:"description"`
	// MaxConcurrent caps in-flight executions; 0 means unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
	// InvocationTimeout bounds each single invocation.
	InvocationTimeout string `yaml:"invocation_timeout"`
	// Executions lists the tool executions of the batch.
	Executions []ExecutionConfig `yaml:"executions"`
	// Dependencies lists additional dependency declarations.
	Dependencies []DependencyConfig `yaml:"dependencies"`
}

// ExecutionConfig declares one tool execution.
type ExecutionConfig struct {
	// ID is the unique tool id within the batch.
	ID string `yaml:"id"`
	// Tool is the registry name of the implementation.
	Tool string `yaml:"tool"`
	// Parameters are passed to the implementation.
	Parameters map[string]any `yaml:"parameters"`
	// DependsOn lists sequential dependencies.
	DependsOn []string `yaml:"depends_on"`
}

// DependencyConfig declares a dependency between two executions.
type DependencyConfig struct {
	// Source must finish before Target runs.
	Source string `yaml:"source"`
	// Target is the gated execution id.
	Target string `yaml:"target"`
	// Type is sequential, parallel or conditional.
	Type string `yaml:"type"`
	// Condition is an HCL expression over the source "result".
	Condition string `yaml:"condition"`
}

// IdempotencyConfig configures response caching for repeated batch calls.
type IdempotencyConfig struct {
	// Enabled toggles idempotency caching.
	Enabled bool `yaml:"enabled"`
	// TTL controls how long cached responses are kept.
	TTL string `yaml:"ttl"`
	// MaxEntries limits the cache size.
	MaxEntries int `yaml:"max_entries"`
	// KeyStrategy selects cache key strategy (correlation_id, arguments_hash, auto).
	KeyStrategy string `yaml:"key_strategy"`
}

// Batch returns the batch declared under name.
func (c *Config) Batch(name string) (BatchConfig, bool) {
	for _, b := range c.Batches {
		if b.Name == name {
			return b, true
		}
	}
	return BatchConfig{}, false
}
