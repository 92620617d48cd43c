package dsl

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/codex-k8s/tool-batch-server/internal/constants"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

// Validate applies defaults and verifies required fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	toolNames := map[string]struct{}{}
	for i := range cfg.Tools {
		tool := &cfg.Tools[i]
		if strings.TrimSpace(tool.Name) == "" {
			return fmt.Errorf("tools[%d].name is required", i)
		}
		if _, exists := toolNames[tool.Name]; exists {
			return fmt.Errorf("duplicate tool name: %s", tool.Name)
		}
		toolNames[tool.Name] = struct{}{}
		if err := validateTool(i, tool, cfg.Server); err != nil {
			return err
		}
	}

	batchNames := map[string]struct{}{}
	for i := range cfg.Batches {
		b := &cfg.Batches[i]
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("batches[%d].name is required", i)
		}
		if _, exists := batchNames[b.Name]; exists {
			return fmt.Errorf("duplicate batch name: %s", b.Name)
		}
		if cfg.Server.AdHocBatches && b.Name == constants.RunBatchTool {
			return fmt.Errorf("batches[%d].name %q is reserved", i, b.Name)
		}
		batchNames[b.Name] = struct{}{}
		if err := ValidateBatch(*b, toolNames, true); err != nil {
			return fmt.Errorf("batches[%d]: %w", i, err)
		}
	}
	if len(cfg.Batches) == 0 && !cfg.Server.AdHocBatches {
		return fmt.Errorf("at least one batch is required when server.ad_hoc_batches is disabled")
	}

	return nil
}

func validateServer(server *ServerConfig) error {
	if server.Name == "" {
		return fmt.Errorf("server.name is required")
	}
	if server.Version == "" {
		return fmt.Errorf("server.version is required")
	}
	server.Transport = strings.ToLower(strings.TrimSpace(server.Transport))
	switch server.Transport {
	case "":
		server.Transport = constants.TransportHTTP
	case constants.TransportHTTP, constants.TransportStdio:
	default:
		return fmt.Errorf("server.transport must be http or stdio")
	}
	if err := timeutil.Check("server.shutdown_timeout", server.ShutdownTimeout); err != nil {
		return err
	}

	if strings.TrimSpace(server.HTTP.Listen) == "" {
		server.HTTP.Listen = ":8080"
	}
	if server.HTTP.Path == "" {
		server.HTTP.Path = "/mcp"
	}
	if server.HTTP.WebhookPath == "" {
		server.HTTP.WebhookPath = "/executor/webhook"
	}
	for name, value := range map[string]string{
		"server.http.read_timeout":  server.HTTP.ReadTimeout,
		"server.http.write_timeout": server.HTTP.WriteTimeout,
		"server.http.idle_timeout":  server.HTTP.IdleTimeout,
	} {
		if err := timeutil.Check(name, value); err != nil {
			return err
		}
	}

	if server.Metrics.Path == "" {
		server.Metrics.Path = "/metrics"
	}
	if !strings.HasPrefix(server.Metrics.Path, "/") {
		return fmt.Errorf("server.metrics.path must start with /")
	}

	if strings.TrimSpace(server.ExecutorWebhookURL) != "" {
		if _, err := parseWebhookURL(server.ExecutorWebhookURL); err != nil {
			return fmt.Errorf("server.executor_webhook_url is invalid: %w", err)
		}
	}

	if err := validateCoordination(&server.Coordination); err != nil {
		return err
	}

	for i, hook := range server.StartupHooks {
		if strings.TrimSpace(hook.Command) == "" {
			return fmt.Errorf("server.startup_hooks[%d].command is required", i)
		}
		if err := timeutil.Check(fmt.Sprintf("server.startup_hooks[%d].timeout", i), hook.Timeout); err != nil {
			return err
		}
	}

	if server.Idempotency.Enabled {
		if server.Idempotency.TTL == "" {
			server.Idempotency.TTL = "1h"
		}
		if server.Idempotency.MaxEntries == 0 {
			server.Idempotency.MaxEntries = 1000
		}
		if server.Idempotency.MaxEntries < 0 {
			return fmt.Errorf("server.idempotency_cache.max_entries must be >= 0")
		}
		if _, err := time.ParseDuration(server.Idempotency.TTL); err != nil {
			return fmt.Errorf("server.idempotency_cache.ttl is invalid: %w", err)
		}
		if server.Idempotency.KeyStrategy == "" {
			server.Idempotency.KeyStrategy = constants.CacheKeyStrategyAuto
		}
		switch strings.ToLower(strings.TrimSpace(server.Idempotency.KeyStrategy)) {
		case constants.CacheKeyStrategyAuto, constants.CacheKeyStrategyCorrelationID, constants.CacheKeyStrategyArgumentsHash:
		default:
			return fmt.Errorf("server.idempotency_cache.key_strategy must be auto, correlation_id, or arguments_hash")
		}
	}
	return nil
}

func validateCoordination(coord *CoordinationConfig) error {
	coord.Backend = strings.ToLower(strings.TrimSpace(coord.Backend))
	switch coord.Backend {
	case "":
		coord.Backend = constants.CoordinationNone
	case constants.CoordinationNone, constants.CoordinationMemory:
	case constants.CoordinationRedis:
		if strings.TrimSpace(coord.RedisURL) == "" {
			return fmt.Errorf("server.coordination.redis_url is required for redis backend")
		}
	default:
		return fmt.Errorf("server.coordination.backend must be none, memory, or redis")
	}
	if coord.Prefix == "" {
		coord.Prefix = "tool-batch:"
	}
	if coord.LeaseTTL == "" {
		coord.LeaseTTL = "5m"
	}
	if coord.WaitTimeout == "" {
		coord.WaitTimeout = "30s"
	}
	if err := timeutil.Check("server.coordination.lease_ttl", coord.LeaseTTL); err != nil {
		return err
	}
	return timeutil.Check("server.coordination.wait_timeout", coord.WaitTimeout)
}

func validateTool(i int, tool *ToolConfig, server ServerConfig) error {
	if err := timeutil.Check(fmt.Sprintf("tools[%d].timeout", i), tool.Timeout); err != nil {
		return err
	}
	exec := &tool.Executor
	exec.Type = strings.ToLower(strings.TrimSpace(exec.Type))
	switch exec.Type {
	case "":
		return fmt.Errorf("tools[%d].executor.type is required", i)
	case constants.ExecutorShell:
		if strings.TrimSpace(exec.Command) == "" {
			return fmt.Errorf("tools[%d].executor.command is required", i)
		}
		if exec.Async {
			return fmt.Errorf("tools[%d].executor.async is only supported by http executors", i)
		}
	case constants.ExecutorHTTP:
		if strings.TrimSpace(exec.URL) == "" {
			return fmt.Errorf("tools[%d].executor.url is required", i)
		}
		if exec.Async {
			if strings.TrimSpace(server.ExecutorWebhookURL) == "" {
				return fmt.Errorf("async http executor requires server.executor_webhook_url")
			}
			if server.Transport == constants.TransportStdio {
				return fmt.Errorf("async http executor requires http transport")
			}
		}
	default:
		return fmt.Errorf("tools[%d].executor.type %q is unknown", i, exec.Type)
	}
	exec.Output = strings.ToLower(strings.TrimSpace(exec.Output))
	switch exec.Output {
	case "":
		exec.Output = constants.OutputText
	case constants.OutputText, constants.OutputJSON:
	default:
		return fmt.Errorf("tools[%d].executor.output must be text or json", i)
	}
	if err := timeutil.Check(fmt.Sprintf("tools[%d].executor.timeout", i), exec.Timeout); err != nil {
		return err
	}

	for j, approver := range tool.Approvers {
		switch strings.ToLower(strings.TrimSpace(approver.Type)) {
		case "":
			return fmt.Errorf("tools[%d].approvers[%d].type is required", i, j)
		case constants.ApproverHTTP:
			if strings.TrimSpace(approver.URL) == "" {
				return fmt.Errorf("tools[%d].approvers[%d].url is required", i, j)
			}
		case constants.ApproverShell:
			if strings.TrimSpace(approver.Command) == "" {
				return fmt.Errorf("tools[%d].approvers[%d].command is required", i, j)
			}
		case constants.ApproverLimits:
			if approver.MaxTotal < 0 || approver.RatePerMinute < 0 {
				return fmt.Errorf("tools[%d].approvers[%d] limits must be >= 0", i, j)
			}
		default:
			return fmt.Errorf("tools[%d].approvers[%d].type %q is unknown", i, j, approver.Type)
		}
		if err := timeutil.Check(fmt.Sprintf("tools[%d].approvers[%d].timeout", i, j), approver.Timeout); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBatch checks a batch declaration. With strict set, every referenced
// tool must be known and the dependency graph must be closed and acyclic;
// without it, such batches are accepted and run to a partial result.
func ValidateBatch(b BatchConfig, toolNames map[string]struct{}, strict bool) error {
	if b.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must be >= 0")
	}
	if err := timeutil.Check("invocation_timeout", b.InvocationTimeout); err != nil {
		return err
	}
	if len(b.Executions) == 0 {
		return fmt.Errorf("executions must not be empty")
	}
	ids := map[string]struct{}{}
	for j, exec := range b.Executions {
		if strings.TrimSpace(exec.ID) == "" {
			return fmt.Errorf("executions[%d].id is required", j)
		}
		if _, exists := ids[exec.ID]; exists {
			return fmt.Errorf("duplicate execution id: %s", exec.ID)
		}
		ids[exec.ID] = struct{}{}
		if strings.TrimSpace(exec.Tool) == "" {
			return fmt.Errorf("executions[%d].tool is required", j)
		}
		if strict {
			if _, ok := toolNames[exec.Tool]; !ok {
				return fmt.Errorf("executions[%d].tool %q is not declared", j, exec.Tool)
			}
		}
	}
	for j, dep := range b.Dependencies {
		if strings.TrimSpace(dep.Source) == "" || strings.TrimSpace(dep.Target) == "" {
			return fmt.Errorf("dependencies[%d] requires source and target", j)
		}
	}

	graph, err := BuildGraph(b)
	if err != nil {
		return err
	}
	if strict {
		if err := graph.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func parseWebhookURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("webhook url is invalid: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("webhook url must be absolute")
	}
	if strings.TrimSpace(parsed.Path) == "" || !strings.HasPrefix(parsed.Path, "/") {
		return nil, fmt.Errorf("webhook url must include a path")
	}
	return parsed, nil
}
