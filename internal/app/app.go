// Package app runs the HTTP listener that serves the MCP endpoint, the
// executor webhook, metrics and health probes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/http/health"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

// App controls the HTTP server lifecycle.
type App struct {
	baseCtx         context.Context
	server          *http.Server
	listener        net.Listener
	health          *health.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New binds the configured listen address and mounts handler on the MCP
// path. extra maps further paths, such as the executor webhook, to handlers.
func New(baseCtx context.Context, serverCfg dsl.ServerConfig, handler http.Handler, extra map[string]http.Handler, logger *slog.Logger, shutdownTimeout time.Duration) (*App, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is nil")
	}
	if baseCtx == nil {
		return nil, fmt.Errorf("base context is nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	healthHandler := health.New()
	mux := http.NewServeMux()
	mux.Handle(serverCfg.HTTP.Path, handler)
	mux.HandleFunc("/healthz", healthHandler.Healthz)
	mux.HandleFunc("/readyz", healthHandler.Readyz)
	for path, route := range extra {
		if strings.TrimSpace(path) == "" || route == nil {
			continue
		}
		if path == serverCfg.HTTP.Path {
			return nil, fmt.Errorf("route %s conflicts with the mcp path", path)
		}
		mux.Handle(path, route)
	}

	listener, err := net.Listen("tcp", serverCfg.HTTP.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", serverCfg.HTTP.Listen, err)
	}

	if shutdownTimeout == 0 {
		shutdownTimeout = timeutil.DurationOr(serverCfg.ShutdownTimeout, 10*time.Second)
	}

	return &App{
		baseCtx:  baseCtx,
		listener: listener,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  timeutil.DurationOr(serverCfg.HTTP.ReadTimeout, 15*time.Second),
			WriteTimeout: timeutil.DurationOr(serverCfg.HTTP.WriteTimeout, 0),
			IdleTimeout:  timeutil.DurationOr(serverCfg.HTTP.IdleTimeout, 60*time.Second),
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
		health:          healthHandler,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// AddCheck registers a readiness check served by /readyz.
func (a *App) AddCheck(name string, check health.Check) {
	a.health.AddCheck(name, check)
}

// Addr returns the bound address.
func (a *App) Addr() string {
	return a.listener.Addr().String()
}

// Run serves until ctx is done and then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.health.SetReady()
		a.logger.Info("http server started", "addr", a.Addr())
		errCh <- a.server.Serve(a.listener)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
		return a.shutdown()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		a.logger.Error("http server error", "error", err)
		return err
	}
}

func (a *App) shutdown() error {
	a.health.SetNotReady()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.baseCtx), a.shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
