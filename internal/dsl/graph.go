package dsl

import (
	"fmt"

	"github.com/codex-k8s/tool-batch-server/internal/batch"
	"github.com/codex-k8s/tool-batch-server/internal/condition"
)

// Dependencies converts the explicit dependency declarations of b. Condition
// evaluation errors are passed to onConditionError and count as unsatisfied.
func Dependencies(b BatchConfig, onConditionError func(dep DependencyConfig, err error)) ([]batch.Dependency, error) {
	out := make([]batch.Dependency, 0, len(b.Dependencies))
	for j, cfg := range b.Dependencies {
		depType, err := batch.ParseDependencyType(cfg.Type)
		if err != nil {
			return nil, fmt.Errorf("dependencies[%d].type: %w", j, err)
		}
		dep := batch.Dependency{Source: cfg.Source, Target: cfg.Target, Type: depType}
		if cfg.Condition != "" {
			expr, err := condition.Parse(cfg.Condition)
			if err != nil {
				return nil, fmt.Errorf("dependencies[%d].condition: %w", j, err)
			}
			var report func(error)
			if onConditionError != nil {
				report = func(err error) { onConditionError(cfg, err) }
			}
			dep.Condition = expr.Condition(report)
		} else if depType == batch.Conditional {
			return nil, fmt.Errorf("dependencies[%d].condition is required for conditional dependencies", j)
		}
		out = append(out, dep)
	}
	return out, nil
}

// BuildGraph registers every execution of b and all of its declarations.
func BuildGraph(b BatchConfig) (*batch.Graph, error) {
	deps, err := Dependencies(b, nil)
	if err != nil {
		return nil, err
	}
	graph := batch.NewGraph()
	for _, exec := range b.Executions {
		graph.AddTool(exec.ID)
		for _, source := range exec.DependsOn {
			graph.AddDependency(batch.Dependency{Source: source, Target: exec.ID, Type: batch.Sequential})
		}
	}
	for _, dep := range deps {
		graph.AddDependency(dep)
	}
	return graph, nil
}
