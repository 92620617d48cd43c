// Package executil renders and runs the shell commands behind shell tools,
// shell approvers and startup hooks.
package executil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"text/template"
	"time"
)

// waitDelay bounds how long a killed command may keep its output pipes open
// through orphaned children.
const waitDelay = 2 * time.Second

// TemplateData defines the available fields in command templates.
type TemplateData struct {
	// Args are tool arguments.
	Args map[string]any
	// Batch is the running batch name.
	Batch string
	// ToolName is the tool name.
	ToolName string
	// ToolID is the execution id within the batch.
	ToolID string
	// ExecutionID is the unique id of this invocation.
	ExecutionID string
	// CorrelationID links related operations.
	CorrelationID string
}

// Environ exports the invocation identity as TOOL_BATCH_* variables. Empty
// fields are skipped.
func (d TemplateData) Environ() []string {
	var out []string
	for _, kv := range [][2]string{
		{"TOOL_BATCH_BATCH", d.Batch},
		{"TOOL_BATCH_TOOL", d.ToolName},
		{"TOOL_BATCH_TOOL_ID", d.ToolID},
		{"TOOL_BATCH_EXECUTION_ID", d.ExecutionID},
		{"TOOL_BATCH_CORRELATION_ID", d.CorrelationID},
	} {
		if kv[1] != "" {
			out = append(out, kv[0]+"="+kv[1])
		}
	}
	return out
}

func (d TemplateData) funcs() template.FuncMap {
	arg := func(name string) any {
		if d.Args == nil {
			return nil
		}
		return d.Args[name]
	}
	return template.FuncMap{
		"arg": arg,
		"argOr": func(name string, def any) any {
			if value := arg(name); value != nil {
				return value
			}
			return def
		},
		"json": func(value any) (string, error) {
			data, err := json.Marshal(value)
			return string(data), err
		},
	}
}

// RenderTemplate renders a string template with TemplateData.
func RenderTemplate(value string, data TemplateData) (string, error) {
	tmpl, err := template.New("value").Funcs(data.funcs()).Parse(value)
	if err != nil {
		return "", fmt.Errorf("template parse: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template render: %w", err)
	}
	return buf.String(), nil
}

// BuildCommand builds an exec.Cmd with rendered command, args and env.
// Without args the command runs through bash -c.
func BuildCommand(ctx context.Context, command string, args []string, env map[string]string, data TemplateData) (*exec.Cmd, error) {
	renderedCommand, err := RenderTemplate(command, data)
	if err != nil {
		return nil, err
	}

	renderedArgs := make([]string, 0, len(args))
	for _, arg := range args {
		rendered, err := RenderTemplate(arg, data)
		if err != nil {
			return nil, err
		}
		renderedArgs = append(renderedArgs, rendered)
	}

	var cmd *exec.Cmd
	if len(renderedArgs) == 0 {
		cmd = exec.CommandContext(ctx, "bash", "-c", renderedCommand)
	} else {
		cmd = exec.CommandContext(ctx, renderedCommand, renderedArgs...)
	}
	cmd.WaitDelay = waitDelay

	cmd.Env = append(os.Environ(), data.Environ()...)
	for key, value := range env {
		rendered, err := RenderTemplate(value, data)
		if err != nil {
			return nil, err
		}
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, rendered))
	}

	return cmd, nil
}

// RunCommand executes a command and returns combined output, exit code and
// error. The exit code is -1 when the process never ran.
func RunCommand(ctx context.Context, command string, args []string, env map[string]string, data TemplateData) (string, int, error) {
	cmd, err := BuildCommand(ctx, command, args, env, data)
	if err != nil {
		return "", -1, err
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	err = cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	return output.String(), exitCode, err
}
