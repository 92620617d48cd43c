package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/executor"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

// needsWebhook reports whether any execution of b runs an async tool.
func needsWebhook(cfg *dsl.Config, b dsl.BatchConfig) bool {
	async := make(map[string]bool, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		async[tool.Name] = tool.Executor.Async
	}
	for _, item := range b.Executions {
		if async[item.Tool] {
			return true
		}
	}
	return false
}

// startWebhook serves async executor callbacks on server.http.listen, the
// address serve would use, until stop is called.
func startWebhook(ctx context.Context, server dsl.ServerConfig, pending *executor.PendingStore, logger *slog.Logger) (stop func(), err error) {
	listener, err := net.Listen("tcp", server.HTTP.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen for executor webhook on %s: %w", server.HTTP.Listen, err)
	}
	mux := http.NewServeMux()
	mux.Handle(server.HTTP.WebhookPath, &executor.WebhookHandler{Store: pending, Logger: logger})
	srv := &http.Server{
		Handler:     mux,
		ReadTimeout: timeutil.DurationOr(server.HTTP.ReadTimeout, 15*time.Second),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("executor webhook server failed", "error", err)
		}
	}()
	logger.Info("executor webhook listening", "addr", listener.Addr().String(), "path", server.HTTP.WebhookPath)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("executor webhook shutdown failed", "error", err)
		}
		<-done
	}, nil
}
