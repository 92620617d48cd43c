// Package timeutil parses the Go duration strings used throughout the
// config file.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DurationOr parses value and returns def on empty or invalid value.
func DurationOr(value string, def time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

// Check reports whether value is empty or a non-negative duration. field
// prefixes the returned error.
func Check(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}
