package batch

import (
	"errors"
	"fmt"
	"strings"
)

// Graph holds the tools of a batch and the declarations gating each of them.
// It is not safe for concurrent mutation; the Executor owns it.
type Graph struct {
	tools map[string]struct{}
	order []string
	deps  map[string][]Dependency
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tools: make(map[string]struct{}),
		deps:  make(map[string][]Dependency),
	}
}

// AddTool registers id. Adding the same id again is a no-op.
func (g *Graph) AddTool(id string) {
	if _, ok := g.tools[id]; ok {
		return
	}
	g.tools[id] = struct{}{}
	g.order = append(g.order, id)
	if _, ok := g.deps[id]; !ok {
		g.deps[id] = nil
	}
}

// AddDependency appends d to the gating list of d.Target. The source is not
// validated: a target gated on an unknown source never becomes ready.
func (g *Graph) AddDependency(d Dependency) {
	g.deps[d.Target] = append(g.deps[d.Target], d)
}

// Tools returns registered ids in registration order.
func (g *Graph) Tools() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the declarations gating id.
func (g *Graph) Dependencies(id string) []Dependency {
	return append([]Dependency(nil), g.deps[id]...)
}

// ReadyTools returns, in registration order, every tool that is not in
// completed and whose declarations are all satisfied.
func (g *Graph) ReadyTools(completed map[string]*Record) []string {
	var ready []string
	for _, id := range g.order {
		if _, done := completed[id]; done {
			continue
		}
		if g.gateOpen(id, completed) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *Graph) gateOpen(id string, completed map[string]*Record) bool {
	for _, d := range g.deps[id] {
		if !d.satisfied(completed) {
			return false
		}
	}
	return true
}

// AllDependencies returns the transitive sources of id, nearest first.
// Shared ancestors are reported once and cycles terminate the walk.
func (g *Graph) AllDependencies(id string) []string {
	visited := map[string]struct{}{id: {}}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, d := range g.deps[current] {
			if _, seen := visited[d.Source]; seen {
				continue
			}
			visited[d.Source] = struct{}{}
			out = append(out, d.Source)
			queue = append(queue, d.Source)
		}
	}
	return out
}

// Validate reports declarations whose source was never registered and
// dependency cycles. The scheduler does not call it.
func (g *Graph) Validate() error {
	var errs []error
	for _, target := range g.order {
		for _, d := range g.deps[target] {
			if _, ok := g.tools[d.Source]; !ok {
				errs = append(errs, fmt.Errorf("%s depends on unknown tool %s", target, d.Source))
			}
		}
	}
	for target, list := range g.deps {
		if _, ok := g.tools[target]; !ok && len(list) > 0 {
			errs = append(errs, fmt.Errorf("dependency targets unknown tool %s", target))
		}
	}
	if err := g.detectCycles(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

const (
	unvisited = iota
	visiting
	visitedDone
)

func (g *Graph) detectCycles() error {
	state := make(map[string]int, len(g.order))
	var path []string
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			start := 0
			for i, p := range path {
				if p == id {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), id)
			return fmt.Errorf("cycle detected: %s", strings.Join(cycle, " <- "))
		case visitedDone:
			return nil
		}
		state[id] = visiting
		path = append(path, id)
		for _, d := range g.deps[id] {
			if d.Type == Parallel {
				continue
			}
			if err := visit(d.Source); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[id] = visitedDone
		return nil
	}
	for _, id := range g.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
