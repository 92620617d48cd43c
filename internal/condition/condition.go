// Package condition compiles dependency conditions written as HCL
// expressions. The source tool's result is bound to the variable "result".
package condition

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/codex-k8s/tool-batch-server/internal/batch"
)

// ResultVar is the variable holding the source result.
const ResultVar = "result"

var functions = map[string]function.Function{
	"abs":        stdlib.AbsoluteFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"jsonencode": stdlib.JSONEncodeFunc,
	"length":     stdlib.LengthFunc,
	"lower":      stdlib.LowerFunc,
	"strlen":     stdlib.StrlenFunc,
	"trimspace":  stdlib.TrimSpaceFunc,
	"upper":      stdlib.UpperFunc,
}

// Expression is a parsed condition.
type Expression struct {
	source string
	expr   hclsyntax.Expression
}

// Parse parses src and checks that it only references "result".
func Parse(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("condition is empty")
	}
	expr, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse condition %q: %w", src, diags)
	}
	for _, traversal := range expr.Variables() {
		if root := traversal.RootName(); root != ResultVar {
			return nil, fmt.Errorf("condition %q references unknown variable %q", src, root)
		}
	}
	return &Expression{source: src, expr: expr}, nil
}

// String returns the expression source.
func (e *Expression) String() string {
	return e.source
}

// Eval evaluates the expression against a tool result. Null or unknown
// outcomes evaluate to false.
func (e *Expression) Eval(result any) (bool, error) {
	val, err := ToCty(result)
	if err != nil {
		return false, fmt.Errorf("convert result: %w", err)
	}
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{ResultVar: val},
		Functions: functions,
	}
	out, diags := e.expr.Value(ctx)
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluate condition %q: %w", e.source, diags)
	}
	if out.IsNull() || !out.IsWhollyKnown() {
		return false, nil
	}
	out, err = convert.Convert(out, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("condition %q must return a bool: %w", e.source, err)
	}
	return out.True(), nil
}

// Condition adapts the expression to batch.Condition. Evaluation errors count
// as an unsatisfied condition; onError, when set, receives them.
func (e *Expression) Condition(onError func(error)) batch.Condition {
	return func(result any) bool {
		ok, err := e.Eval(result)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return false
		}
		return ok
	}
}

// Compile parses src and returns a batch.Condition.
func Compile(src string) (batch.Condition, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return expr.Condition(nil), nil
}
