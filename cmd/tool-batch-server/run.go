package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/tool-batch-server/internal/protocol"
	"github.com/codex-k8s/tool-batch-server/internal/runtime"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		correlationID string
		maxConcurrent int
		params        []string
		failPartial   bool
	)
	cmd := &cobra.Command{
		Use:   "run <batch>",
		Short: "Run one configured batch and print the JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadDSL()
			if err != nil {
				return err
			}
			b, ok := cfg.Batch(args[0])
			if !ok {
				return fmt.Errorf("batch %q is not declared", args[0])
			}
			overrides, err := parseOverrides(params)
			if err != nil {
				return err
			}

			logger := opts.logger()
			s, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if needsWebhook(cfg, b) {
				stop, err := startWebhook(cmd.Context(), cfg.Server, s.pending, logger)
				if err != nil {
					return err
				}
				defer stop()
			}
			runOpts := runtime.RunOptions{
				CorrelationID: correlationID,
				Parameters:    overrides,
				Exclusive:     true,
			}
			if cmd.Flags().Changed("max-concurrent") {
				runOpts.MaxConcurrent = &maxConcurrent
			}
			resp, err := s.runner.Run(cmd.Context(), b, runOpts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if failPartial && resp.Status == protocol.BatchPartial {
				return fmt.Errorf("batch %s is partial: %s never ran", b.Name, strings.Join(resp.Missing, ", "))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&correlationID, "correlation-id", "", "Request id used for idempotency")
	flags.IntVar(&maxConcurrent, "max-concurrent", 0, "Override the batch concurrency cap, 0 for unlimited")
	flags.StringArrayVarP(&params, "param", "p", nil, "Parameter override as <execution>.<key>=<value>; repeatable")
	flags.BoolVar(&failPartial, "fail-partial", false, "Exit non-zero when some executions never ran")
	return cmd
}

// parseOverrides turns id.key=value flags into per-execution parameters.
// Values that parse as JSON keep their type; anything else is a string.
func parseOverrides(items []string) (map[string]map[string]any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := map[string]map[string]any{}
	for _, item := range items {
		target, value, ok := strings.Cut(item, "=")
		id, key, dotted := strings.Cut(target, ".")
		if !ok || !dotted || id == "" || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want <execution>.<key>=<value>", item)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		if out[id] == nil {
			out[id] = map[string]any{}
		}
		out[id][key] = decoded
	}
	return out, nil
}
