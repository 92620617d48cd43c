package dsl

import (
	"fmt"
	"strconv"
)

func normalizeConfig(cfg *Config) error {
	for i := range cfg.Batches {
		for j := range cfg.Batches[i].Executions {
			exec := &cfg.Batches[i].Executions[j]
			params, err := NormalizeParameters(exec.Parameters)
			if err != nil {
				return fmt.Errorf("batches[%d].executions[%d].%w", i, j, err)
			}
			exec.Parameters = params
		}
	}
	return nil
}

// NormalizeParameters rewrites YAML-decoded values into the shapes JSON
// decoding produces: string-keyed maps, []any lists and float64 numbers.
// Parameters from the config file and from MCP input then compare and hash
// the same way.
func NormalizeParameters(params map[string]any) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	normalized, err := normalizeValue("parameters", params)
	if err != nil {
		return nil, err
	}
	return normalized.(map[string]any), nil
}

func normalizeValue(path string, value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			normalized, err := normalizeValue(path+"."+key, item)
			if err != nil {
				return nil, err
			}
			out[key] = normalized
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("%s: key %v must be a string, got %T", path, key, key)
			}
			normalized, err := normalizeValue(path+"."+name, item)
			if err != nil {
				return nil, err
			}
			out[name] = normalized
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			normalized, err := normalizeValue(path+"["+strconv.Itoa(i)+"]", item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return value, nil
	}
}
