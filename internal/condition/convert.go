package condition

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToCty converts a tool result into a cty value. Maps become objects and
// slices become tuples so heterogeneous JSON-like data keeps its shape.
func ToCty(v any) (cty.Value, error) {
	switch typed := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return typed, nil
	case string:
		return cty.StringVal(typed), nil
	case bool:
		return cty.BoolVal(typed), nil
	case int:
		return cty.NumberIntVal(int64(typed)), nil
	case int32:
		return cty.NumberIntVal(int64(typed)), nil
	case int64:
		return cty.NumberIntVal(typed), nil
	case uint:
		return cty.NumberUIntVal(uint64(typed)), nil
	case uint64:
		return cty.NumberUIntVal(typed), nil
	case float32:
		return cty.NumberFloatVal(float64(typed)), nil
	case float64:
		return cty.NumberFloatVal(typed), nil
	case json.Number:
		f, _, err := big.ParseFloat(typed.String(), 10, 512, big.ToNearestEven)
		if err != nil {
			return cty.NilVal, fmt.Errorf("parse number %q: %w", typed, err)
		}
		return cty.NumberVal(f), nil
	case []any:
		if len(typed) == 0 {
			return cty.EmptyTupleVal, nil
		}
		items := make([]cty.Value, 0, len(typed))
		for i, item := range typed {
			converted, err := ToCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, converted)
		}
		return cty.TupleVal(items), nil
	case map[string]any:
		if len(typed) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(typed))
		for key, item := range typed {
			converted, err := ToCty(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("%s: %w", key, err)
			}
			attrs[key] = converted
		}
		return cty.ObjectVal(attrs), nil
	default:
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("unable to infer cty type for %T: %w", v, err)
		}
		return gocty.ToCtyValue(v, ty)
	}
}
