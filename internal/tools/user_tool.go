package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dallenpyrah/OpenCode/internal/config"
)

// UserTool is a user-configured tool: a JSON Schema for its arguments
// and a shell command template with {param} placeholders filled from
// the validated arguments.
type UserTool struct {
	name            string
	description     string
	schema          map[string]any
	commandTemplate string
	runner          *Runner
}

// NewUserTool builds a UserTool from configuration. The schema is
// compiled here so a broken declaration fails at startup, not on the
// model's first call.
func NewUserTool(cfg config.UserToolConfig, runner *Runner) (*UserTool, error) {
	var schema map[string]any
	if err := json.Unmarshal([]byte(cfg.InputSchema), &schema); err != nil {
		return nil, fmt.Errorf("parsing input schema for tool %q: %w", cfg.Name, err)
	}
	if _, err := compileSchema(cfg.Name, schema); err != nil {
		return nil, err
	}
	return &UserTool{
		name:            cfg.Name,
		description:     cfg.Description,
		schema:          schema,
		commandTemplate: cfg.CommandTemplate,
		runner:          runner,
	}, nil
}

func (t *UserTool) Name() string { return t.name }

func (t *UserTool) Description() string { return t.description }

func (t *UserTool) ParametersSchema() map[string]any { return t.schema }

// Mutates is always true: a user tool runs an arbitrary shell command.
func (t *UserTool) Mutates() bool { return true }

func (t *UserTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	command := t.commandTemplate
	for key, value := range args {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		default:
			return nil, &InvalidArgumentsError{
				ToolName: t.name,
				Details:  fmt.Sprintf("unsupported argument type for key %q", key),
			}
		}
		command = strings.ReplaceAll(command, "{"+key+"}", s)
	}

	res, err := t.runner.RunShell(ctx, command)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		return nil, &ExecutionError{Command: command, Stderr: "command timed out"}
	}
	if res.ExitCode != 0 {
		return nil, &ExecutionError{Command: command, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}
