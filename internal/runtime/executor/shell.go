package executor

import (
	"context"
	"strings"

	"github.com/codex-k8s/tool-batch-server/internal/executil"
)

// Shell executes a command as a tool.
type Shell struct {
	// Command is the shell command to execute.
	Command string
	// Args are command arguments.
	Args []string
	// Env adds environment variables.
	Env map[string]string
}

// Execute runs the configured shell command. Output is returned even when
// the command fails so callers can surface it.
func (s Shell) Execute(ctx context.Context, req Request) (string, error) {
	output, _, err := executil.RunCommand(ctx, s.Command, s.Args, s.Env, executil.TemplateData{
		Args:          req.Arguments,
		Batch:         req.Batch,
		ToolName:      req.ToolName,
		ToolID:        req.ToolID,
		ExecutionID:   req.ExecutionID,
		CorrelationID: req.CorrelationID,
	})
	return strings.TrimSpace(output), err
}
