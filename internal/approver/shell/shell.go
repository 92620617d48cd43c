// Package shell approves invocations by running a command and reading its
// exit code.
package shell

import (
	"context"
	"slices"
	"strings"

	"github.com/codex-k8s/tool-batch-server/internal/executil"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/approver"
)

// Approver runs a shell command and decides based on exit code. The command
// sees the invocation identity as TOOL_BATCH_* environment variables.
type Approver struct {
	Label   string
	Command string
	Args    []string
	Env     map[string]string
	// AllowExitCodes declares additional success exit codes.
	AllowExitCodes []int
}

// Name returns approver name for audit and logging.
func (a Approver) Name() string {
	if a.Label != "" {
		return a.Label
	}
	return "shell"
}

// Approve runs the command. Output, when present, becomes the reason.
func (a Approver) Approve(ctx context.Context, req approver.Request) (approver.Decision, error) {
	output, exitCode, err := executil.RunCommand(ctx, a.Command, a.Args, a.Env, executil.TemplateData{
		Args:          req.Arguments,
		Batch:         req.Batch,
		ToolName:      req.ToolName,
		ToolID:        req.ToolID,
		ExecutionID:   req.ExecutionID,
		CorrelationID: req.CorrelationID,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return approver.Decision{Allowed: false, Reason: "approval canceled", Source: a.Name()}, ctxErr
	}

	allowed := err == nil || slices.Contains(a.AllowExitCodes, exitCode)
	reason := strings.TrimSpace(output)
	switch {
	case reason != "":
	case allowed:
		reason = "approved"
	default:
		reason = "denied"
	}
	return approver.Decision{Allowed: allowed, Reason: reason, Source: a.Name()}, nil
}
