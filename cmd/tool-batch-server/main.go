package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/tool-batch-server/internal/config"
)

// options are the flags shared by every subcommand.
type options struct {
	env            config.Config
	configPath     string
	embeddedConfig string
	logLevel       string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "tool-batch-server",
		Short:         "Run dependency-aware tool batches over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			env, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			opts.env = env
			if opts.configPath == "" {
				opts.configPath = env.ConfigPath
			}
			if opts.logLevel == "" {
				opts.logLevel = env.LogLevel
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to the YAML config (defaults to $TOOL_BATCH_CONFIG)")
	flags.StringVar(&opts.embeddedConfig, "embedded-config", "", "Use embedded config from configs/ (filename)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(newServeCmd(opts), newRunCmd(opts), newValidateCmd(opts))
	return root
}
