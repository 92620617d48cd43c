// Package render expands the config file as a text/template before it is
// parsed, so secrets and endpoints can come from the environment.
package render

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"text/template"
)

// EnvTracker records environment variables referenced while rendering.
type EnvTracker struct {
	missing map[string]struct{}
	used    map[string]struct{}
}

func newTracker() *EnvTracker {
	return &EnvTracker{missing: map[string]struct{}{}, used: map[string]struct{}{}}
}

func (t *EnvTracker) markMissing(key string) {
	if t != nil {
		t.missing[key] = struct{}{}
	}
}

// Missing returns the sorted names of unset variables read through env.
func (t *EnvTracker) Missing() []string {
	return slices.Sorted(maps.Keys(t.missing))
}

// Used returns the sorted names of every variable the template read.
func (t *EnvTracker) Used() []string {
	return slices.Sorted(maps.Keys(t.used))
}

// RenderFile loads and renders a config template from disk.
func RenderFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return RenderBytes(path, raw)
}

// RenderBytes renders a config template. Unset variables read through env
// fail the render; envOr supplies a fallback instead.
func RenderBytes(name string, raw []byte) ([]byte, error) {
	out, _, err := Render(name, raw)
	return out, err
}

// Render is RenderBytes that also returns the tracker.
func Render(name string, raw []byte) ([]byte, *EnvTracker, error) {
	tracker := newTracker()
	if strings.TrimSpace(name) == "" {
		name = "config"
	}
	tmpl, err := template.New(name).Funcs(FuncMap(tracker)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, tracker, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	execErr := tmpl.Execute(&buf, map[string]any{})
	if len(tracker.missing) > 0 {
		return nil, tracker, fmt.Errorf("missing env vars: %s", strings.Join(tracker.Missing(), ", "))
	}
	if execErr != nil {
		return nil, tracker, fmt.Errorf("render template: %w", execErr)
	}
	return buf.Bytes(), tracker, nil
}
