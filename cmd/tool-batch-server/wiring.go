package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codex-k8s/tool-batch-server/configs"
	"github.com/codex-k8s/tool-batch-server/internal/audit"
	"github.com/codex-k8s/tool-batch-server/internal/constants"
	"github.com/codex-k8s/tool-batch-server/internal/coordinator"
	"github.com/codex-k8s/tool-batch-server/internal/dsl"
	"github.com/codex-k8s/tool-batch-server/internal/idempotency"
	"github.com/codex-k8s/tool-batch-server/internal/log"
	"github.com/codex-k8s/tool-batch-server/internal/metrics"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
	"github.com/codex-k8s/tool-batch-server/internal/render"
	"github.com/codex-k8s/tool-batch-server/internal/runtime"
	"github.com/codex-k8s/tool-batch-server/internal/runtime/executor"
	"github.com/codex-k8s/tool-batch-server/internal/timeutil"
)

func (o *options) logger() *slog.Logger {
	return log.New(o.logLevel, os.Stderr)
}

// loadDSL renders and parses the file or embedded config.
func (o *options) loadDSL() (*dsl.Config, error) {
	var (
		rendered []byte
		err      error
	)
	if o.embeddedConfig != "" {
		raw, loadErr := configs.Load(o.embeddedConfig)
		if loadErr != nil {
			return nil, loadErr
		}
		rendered, err = render.RenderBytes(o.embeddedConfig, raw)
	} else {
		rendered, err = render.RenderFile(o.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	cfg, err := dsl.Load(rendered)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// stack is everything a batch run needs beyond the config.
type stack struct {
	runner      *runtime.Runner
	pending     *executor.PendingStore
	registry    *prometheus.Registry
	coordinator coordinator.Coordinator
}

func buildStack(ctx context.Context, cfg *dsl.Config, logger *slog.Logger) (*stack, error) {
	pending := executor.NewPendingStore()
	tools, err := runtime.BuildTools(cfg, pending)
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}

	s := &stack{pending: pending}
	runner := &runtime.Runner{
		Tools:  tools,
		Logger: logger,
		Audit:  audit.New(logger),
	}

	if cfg.Server.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheus(s.registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		runner.Metrics = recorder
	}

	if idem := cfg.Server.Idempotency; idem.Enabled {
		ttl, err := time.ParseDuration(idem.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid idempotency ttl: %w", err)
		}
		runner.Cache = idempotency.NewCache[protocol.BatchResponse](ttl, idem.MaxEntries)
		runner.CacheKeyStrategy = idem.KeyStrategy
	}

	coord := cfg.Server.Coordination
	switch coord.Backend {
	case constants.CoordinationMemory:
		s.coordinator = coordinator.NewMemory()
	case constants.CoordinationRedis:
		s.coordinator, err = coordinator.DialRedis(ctx, coord.RedisURL, coord.Prefix)
		if err != nil {
			return nil, err
		}
	}
	runner.Coordinator = s.coordinator
	runner.LeaseTTL = timeutil.DurationOr(coord.LeaseTTL, 5*time.Minute)
	runner.LeaseWait = timeutil.DurationOr(coord.WaitTimeout, 30*time.Second)

	s.runner = runner
	return s, nil
}
