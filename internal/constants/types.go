package constants

// Executor type aliases.
const (
	ExecutorShell = "shell"
	ExecutorHTTP  = "http"
)

// Executor output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Approver type aliases.
const (
	ApproverHTTP   = "http"
	ApproverShell  = "shell"
	ApproverLimits = "limits"
)

// Transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Coordination backends.
const (
	CoordinationNone   = "none"
	CoordinationMemory = "memory"
	CoordinationRedis  = "redis"
)

// Idempotency cache key strategies.
const (
	CacheKeyStrategyAuto          = "auto"
	CacheKeyStrategyCorrelationID = "correlation_id"
	CacheKeyStrategyArgumentsHash = "arguments_hash"
)

// RunBatchTool is the MCP tool name for ad hoc batches.
const RunBatchTool = "run_batch"
