package main

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codex-k8s/tool-batch-server/internal/app"
	"github.com/codex-k8s/tool-batch-server/internal/constants"
	"github.com/codex-k8s/tool-batch-server/internal/coordinator"
	"github.com/codex-k8s/tool-batch-server/internal/metrics"
	"github.com/codex-k8s/tool-batch-server/internal/runtime"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/executor"
	"github.com/codex-k8s/tool-batch-server/internal/startup"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve configured batches as MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *options) error {
	logger := opts.logger()
	cfg, err := opts.loadDSL()
	if err != nil {
		return err
	}

	if err := startup.Run(ctx, cfg.Server.StartupHooks, logger); err != nil {
		return err
	}

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	server, err := runtime.Builder{Runner: s.runner, Logger: logger}.Build(cfg)
	if err != nil {
		return err
	}

	if cfg.Server.Transport == constants.TransportStdio {
		logger.Info("serving over stdio", "batches", len(cfg.Batches))
		return server.Run(ctx, &mcp.StdioTransport{})
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		Stateless: cfg.Server.HTTP.Stateless,
	})
	extra := map[string]http.Handler{
		cfg.Server.HTTP.WebhookPath: &executor.WebhookHandler{Store: s.pending, Logger: logger},
	}
	if s.registry != nil {
		extra[cfg.Server.Metrics.Path] = metrics.Handler(s.registry)
	}

	application, err := app.New(ctx, cfg.Server, handler, extra, logger, opts.env.ShutdownTimeout)
	if err != nil {
		return err
	}
	if pinger, ok := s.coordinator.(coordinator.Pinger); ok {
		application.AddCheck("coordination", pinger.Ping)
	}
	return application.Run(ctx)
}
