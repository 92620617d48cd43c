package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/tool-batch-server/internal/constants"
	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
)

// Builder constructs an MCP server from the DSL config.
type Builder struct {
	// Runner executes batches.
	Runner *Runner
	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Build creates an MCP server exposing one tool per configured batch and,
// when enabled, the run_batch tool.
func (b Builder) Build(cfg *dsl.Config) (*mcp.Server, error) {
	if b.Runner == nil {
		return nil, fmt.Errorf("runner is nil")
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)

	for _, batchCfg := range cfg.Batches {
		b.addBatch(server, batchCfg)
	}
	if cfg.Server.AdHocBatches {
		b.addRunBatch(server, cfg.Tools)
	}
	return server, nil
}

func (b Builder) addBatch(server *mcp.Server, batchCfg dsl.BatchConfig) {
	ids := make(map[string]struct{}, len(batchCfg.Executions))
	for _, item := range batchCfg.Executions {
		ids[item.ID] = struct{}{}
	}

	tool := &mcp.Tool{
		Name:        batchCfg.Name,
		Description: batchDescription(batchCfg),
	}
	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, input protocol.BatchInput) (*mcp.CallToolResult, protocol.BatchResponse, error) {
		for id := range input.Parameters {
			if _, ok := ids[id]; !ok {
				return nil, protocol.BatchResponse{}, fmt.Errorf("parameters reference unknown execution %q", id)
			}
		}
		if input.MaxConcurrent != nil && *input.MaxConcurrent < 0 {
			return nil, protocol.BatchResponse{}, fmt.Errorf("max_concurrent must be >= 0")
		}
		resp, err := b.Runner.Run(ctx, batchCfg, RunOptions{
			CorrelationID: input.CorrelationID,
			MaxConcurrent: input.MaxConcurrent,
			Parameters:    input.Parameters,
			Exclusive:     true,
		})
		if err != nil {
			b.logError("batch call failed", batchCfg.Name, err)
			return nil, protocol.BatchResponse{}, err
		}
		return nil, resp, nil
	})
}

func (b Builder) addRunBatch(server *mcp.Server, tools []dsl.ToolConfig) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	tool := &mcp.Tool{
		Name: constants.RunBatchTool,
		Description: "Runs an ad hoc batch of tool executions with dependencies. " +
			"Available tools: " + strings.Join(names, ", ") + ".",
	}
	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, input protocol.RunBatchInput) (*mcp.CallToolResult, protocol.BatchResponse, error) {
		batchCfg := AdHocBatch(input)
		if err := dsl.ValidateBatch(batchCfg, nil, false); err != nil {
			return nil, protocol.BatchResponse{}, fmt.Errorf("invalid batch: %w", err)
		}
		resp, err := b.Runner.Run(ctx, batchCfg, RunOptions{CorrelationID: input.CorrelationID})
		if err != nil {
			b.logError("batch call failed", batchCfg.Name, err)
			return nil, protocol.BatchResponse{}, err
		}
		return nil, resp, nil
	})
}

// AdHocBatch converts run_batch input into a batch declaration.
func AdHocBatch(input protocol.RunBatchInput) dsl.BatchConfig {
	out := dsl.BatchConfig{
		Name:              constants.RunBatchTool,
		MaxConcurrent:     input.MaxConcurrent,
		InvocationTimeout: input.InvocationTimeout,
		Executions:        make([]dsl.ExecutionConfig, 0, len(input.Executions)),
		Dependencies:      make([]dsl.DependencyConfig, 0, len(input.Dependencies)),
	}
	for _, item := range input.Executions {
		out.Executions = append(out.Executions, dsl.ExecutionConfig{
			ID:         item.ID,
			Tool:       item.Tool,
			Parameters: item.Parameters,
			DependsOn:  item.DependsOn,
		})
	}
	for _, dep := range input.Dependencies {
		out.Dependencies = append(out.Dependencies, dsl.DependencyConfig(dep))
	}
	return out
}

func batchDescription(batchCfg dsl.BatchConfig) string {
	if strings.TrimSpace(batchCfg.Description) != "" {
		return batchCfg.Description
	}
	ids := make([]string, 0, len(batchCfg.Executions))
	for _, item := range batchCfg.Executions {
		ids = append(ids, item.ID)
	}
	return fmt.Sprintf("Runs batch %s (%s).", batchCfg.Name, strings.Join(ids, ", "))
}

func (b Builder) logError(msg, batchName string, err error) {
	if b.Logger != nil {
		b.Logger.Error(msg, "batch", batchName, "error", err)
	}
}
