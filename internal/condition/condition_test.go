package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	cases := []struct {
		name   string
		expr   string
		result any
		want   bool
	}{
		{name: "int equality", expr: "result == 5", result: 5, want: true},
		{name: "int mismatch", expr: "result == 5", result: 6, want: false},
		{name: "float comparison", expr: "result > 1.5", result: 2.25, want: true},
		{name: "string function", expr: `upper(trimspace(result)) == "OK"`, result: " ok\n", want: true},
		{name: "object attribute", expr: `result.status == "ready" && result.replicas >= 2`, result: map[string]any{"status": "ready", "replicas": 3}, want: true},
		{name: "tuple length", expr: "length(result) == 2", result: []any{"a", 1}, want: true},
		{name: "json output", expr: `jsondecode(result).ok`, result: `{"ok": true}`, want: true},
		{name: "null result", expr: "result == null", result: nil, want: true},
		{name: "null compared to number", expr: "result == 5", result: nil, want: false},
		{name: "json number", expr: "result == 10", result: json.Number("10"), want: true},
		{name: "string bool converts", expr: "result", result: "true", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := Parse(tc.expr)
			require.NoError(t, err)
			got, err := expr.Eval(tc.result)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorContains(t, err, "empty")

	_, err = Parse("result ==")
	assert.ErrorContains(t, err, "parse condition")

	_, err = Parse("other.value == 1")
	assert.ErrorContains(t, err, `unknown variable "other"`)
}

func TestEvalErrors(t *testing.T) {
	expr, err := Parse("result.missing == 1")
	require.NoError(t, err)
	_, err = expr.Eval(map[string]any{"present": 1})
	assert.Error(t, err)

	expr, err = Parse(`"not a bool"`)
	require.NoError(t, err)
	_, err = expr.Eval(nil)
	assert.ErrorContains(t, err, "must return a bool")
}

func TestCompileReportsErrorsAsFalse(t *testing.T) {
	expr, err := Parse("result.missing == 1")
	require.NoError(t, err)

	var reported error
	cond := expr.Condition(func(err error) { reported = err })
	assert.False(t, cond(map[string]any{}))
	assert.Error(t, reported)

	cond, err = Compile("result == 5")
	require.NoError(t, err)
	assert.True(t, cond(5))
	assert.False(t, cond("5x"))
}

func TestToCtyFallsBackToGocty(t *testing.T) {
	type payload struct {
		Name string `cty:"name"`
	}
	val, err := ToCty(payload{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", val.GetAttr("name").AsString())
}
