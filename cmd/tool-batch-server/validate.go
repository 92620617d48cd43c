package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/tool-batch-server/internal/dsl"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and print each execution's transitive dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadDSL()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: %d tools, %d batches\n", len(cfg.Tools), len(cfg.Batches))
			for _, b := range cfg.Batches {
				graph, err := dsl.BuildGraph(b)
				if err != nil {
					return fmt.Errorf("batch %s: %w", b.Name, err)
				}
				fmt.Fprintf(out, "%s:\n", b.Name)
				for _, id := range graph.Tools() {
					deps := graph.AllDependencies(id)
					if len(deps) == 0 {
						fmt.Fprintf(out, "  %s\n", id)
						continue
					}
					fmt.Fprintf(out, "  %s <- %s\n", id, strings.Join(deps, ", "))
				}
			}
			return nil
		},
	}
}
