package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
)

// FuncMap returns the helpers available to config templates.
func FuncMap(tracker *EnvTracker) template.FuncMap {
	return template.FuncMap{
		"env": func(key string) string {
			value, ok := tracker.lookup(key)
			if !ok {
				tracker.markMissing(key)
			}
			return value
		},
		"envOr": func(key, def string) string {
			if value, ok := tracker.lookup(key); ok {
				return value
			}
			return def
		},
		"required": func(key string) (string, error) {
			value, ok := tracker.lookup(key)
			if !ok || strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("environment variable %s is required", key)
			}
			return value, nil
		},
		"default": func(def, value string) string {
			if value == "" {
				return def
			}
			return value
		},
		"ternary": func(cond bool, a, b string) string {
			if cond {
				return a
			}
			return b
		},
		"quote": strconv.Quote,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"split":      strings.Split,
		"lower":      strings.ToLower,
		"upper":      strings.ToUpper,
		"trimPrefix": strings.TrimPrefix,
		"trimSuffix": strings.TrimSuffix,
		"replace":    strings.ReplaceAll,
	}
}

func (t *EnvTracker) lookup(key string) (string, bool) {
	if t == nil {
		return os.LookupEnv(key)
	}
	t.used[key] = struct{}{}
	return os.LookupEnv(key)
}
