package startup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/executil"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

// Run executes configured startup hooks sequentially and stops at the first
// failing hook.
func Run(ctx context.Context, hooks []dsl.HookConfig, logger *slog.Logger) error {
	for idx, hook := range hooks {
		if strings.TrimSpace(hook.Command) == "" {
			continue
		}
		if err := runHook(ctx, idx, hook, logger); err != nil {
			return err
		}
	}
	return nil
}

func runHook(ctx context.Context, idx int, hook dsl.HookConfig, logger *slog.Logger) error {
	if timeout := timeutil.DurationOr(hook.Timeout, 0); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if logger != nil {
		logger.Info("running startup hook", "index", idx)
	}
	output, exitCode, err := executil.RunCommand(ctx, hook.Command, hook.Args, hook.Env, executil.TemplateData{})
	output = strings.TrimSpace(output)
	if err != nil {
		if logger != nil {
			logger.Error("startup hook failed", "index", idx, "exit_code", exitCode, "output", output)
		}
		return fmt.Errorf("startup hook %d failed: %w", idx, err)
	}
	if logger != nil && output != "" {
		logger.Info("startup hook output", "index", idx, "output", output)
	}
	return nil
}
