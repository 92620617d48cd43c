package batch

import (
	"fmt"
	"strings"
)

// DependencyType controls how a Dependency gates its target.
type DependencyType int

// Dependency kinds. Sequential is the zero value.
const (
	Sequential DependencyType = iota
	Parallel
	Conditional
)

// String returns the lower-case name used in configuration files.
func (t DependencyType) String() string {
	switch t {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	case Conditional:
		return "conditional"
	default:
		return fmt.Sprintf("dependency_type(%d)", int(t))
	}
}

// ParseDependencyType parses a configuration value. Empty means sequential.
func ParseDependencyType(value string) (DependencyType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	case "conditional":
		return Conditional, nil
	default:
		return Sequential, fmt.Errorf("unknown dependency type: %s", value)
	}
}

// Condition is a predicate over the source tool's result.
type Condition func(result any) bool

// Dependency declares that Target is gated on Source.
type Dependency struct {
	// Source must be terminal before Target becomes eligible.
	Source string
	// Target is the gated tool id.
	Target string
	// Type is the dependency kind.
	Type DependencyType
	// Condition, when set, must hold for the source result.
	Condition Condition
}

// satisfied applies the gating rule against the completed set. A failed
// source still satisfies an unconditioned declaration.
func (d Dependency) satisfied(completed map[string]*Record) bool {
	if d.Type == Parallel {
		return true
	}
	source, ok := completed[d.Source]
	if !ok {
		return false
	}
	if d.Condition == nil {
		return true
	}
	result, _ := source.Result()
	return evalCondition(d.Condition, result)
}

func evalCondition(cond Condition, result any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return cond(result)
}
