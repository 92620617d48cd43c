// Package security masks sensitive values before they reach logs, audit
// events or approver payloads.
package security

import "strings"

// Mask replaces redacted values.
const Mask = "***"

var sensitiveSubstrings = []string{
	"token",
	"password",
	"passwd",
	"passphrase",
	"pwd",
	"authorization",
	"auth",
	"apikey",
	"api_key",
	"access_key",
	"private_key",
	"credential",
	"key",
	"signature",
	"sig",
	"cookie",
	"session",
	"jwt",
	"bearer",
	"secret",
}

// RedactArguments returns a copy of values with sensitive keys masked.
// Nested maps and lists are walked so execution parameters keep their shape.
func RedactArguments(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	redacted := make(map[string]any, len(values))
	for key, value := range values {
		if isSensitiveKey(key) {
			redacted[key] = Mask
			continue
		}
		redacted[key] = redactValue(value)
	}
	return redacted
}

// RedactParameters masks every per-execution parameter map.
func RedactParameters(params map[string]map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for id, values := range params {
		out[id] = RedactArguments(values)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactArguments(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	// Names of secrets are references, not values.
	if strings.Contains(lower, "secret") && strings.Contains(lower, "name") {
		return false
	}
	for _, part := range sensitiveSubstrings {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
