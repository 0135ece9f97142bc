package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dallenpyrah/OpenCode/internal/llm"
)

// Policy controls which tool executions require interactive confirmation.
type Policy int

const (
	// PolicyConfirmWrites gates state-changing tools behind a yes/no
	// prompt. This is the default.
	PolicyConfirmWrites Policy = iota

	// PolicyAllowAll executes every tool without confirmation.
	PolicyAllowAll
)

// ParsePolicy converts a config string to a Policy. Unrecognized values
// fall back to the confirming default.
func ParsePolicy(s string) Policy {
	if s == "allow_all" {
		return PolicyAllowAll
	}
	return PolicyConfirmWrites
}

// Confirmer asks the user a yes/no question and reports the answer.
type Confirmer func(prompt string) bool

// ValidatedToolCall is a tool call whose arguments have passed schema
// validation. Downstream code may assume the arguments are well formed.
type ValidatedToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Engine runs the tool invocation pipeline: parse arguments, look up the
// tool, validate against its schema, gate on the security policy,
// dispatch, and normalize the outcome into a uniform result envelope.
type Engine struct {
	registry *Registry
	schemas  *schemaCache
	policy   Policy
	confirm  Confirmer
	logger   *slog.Logger
}

// NewEngine builds an Engine over a registry. The confirmer is consulted
// only under PolicyConfirmWrites; a nil confirmer denies every gated
// call.
func NewEngine(registry *Registry, policy Policy, confirm Confirmer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		schemas:  newSchemaCache(),
		policy:   policy,
		confirm:  confirm,
		logger:   logger,
	}
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Validate runs steps 1-4 of the pipeline (parse, lookup, compile,
// validate) without executing anything.
func (e *Engine) Validate(call llm.ToolCall) (*ValidatedToolCall, error) {
	name := call.Function.Name

	var args map[string]any
	raw := call.Function.Arguments
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &InvalidArgumentsError{
			ToolName: name,
			Details:  fmt.Sprintf("arguments are not valid JSON: %v (raw: %q)", err, call.Function.Arguments),
		}
	}

	tool, ok := e.registry.Get(name)
	if !ok {
		return nil, &ToolUnavailableError{ToolName: name}
	}

	sch, err := e.schemas.get(tool)
	if err != nil {
		// A broken schema is the tool author's bug, not the model's.
		return nil, err
	}

	if err := sch.Validate(anyValue(args)); err != nil {
		return nil, &InvalidArgumentsError{
			ToolName: name,
			Details:  validationDetails(err),
		}
	}

	return &ValidatedToolCall{ID: call.ID, Name: name, Arguments: args}, nil
}

// ValidateCalls validates every tool call in a response batch,
// short-circuiting on the first failure. Used on non-streaming responses
// before any execution starts.
func (e *Engine) ValidateCalls(calls []llm.ToolCall) ([]ValidatedToolCall, error) {
	out := make([]ValidatedToolCall, 0, len(calls))
	for _, call := range calls {
		v, err := e.Validate(call)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Execute runs the full pipeline for one tool call and returns the
// tool-role reply carrying the result envelope. The reply is always
// valid and linked to the originating call id; err is additionally
// non-nil when the call failed, so the caller can decide whether the
// conversation continues.
func (e *Engine) Execute(ctx context.Context, call llm.ToolCall) (llm.Message, error) {
	name := call.Function.Name
	e.logger.Info("executing tool call", "tool", name, "call_id", call.ID)

	validated, err := e.Validate(call)
	if err != nil {
		e.logger.Warn("tool call rejected", "tool", name, "error", err)
		return llm.ToolMessage(call.ID, envelope(name, nil, err)), err
	}

	if e.gated(validated) {
		prompt := fmt.Sprintf("Allow %s with args: %s?", name, compactJSON(validated.Arguments))
		if e.confirm == nil || !e.confirm(prompt) {
			e.logger.Info("tool execution denied", "tool", name)
			return llm.ToolMessage(call.ID, envelope(name, nil, ErrExecutionDenied)), ErrExecutionDenied
		}
	}

	tool, _ := e.registry.Get(name)
	result, err := tool.Execute(ctx, validated.Arguments)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", name, "error", err)
		return llm.ToolMessage(call.ID, envelope(name, nil, err)), err
	}

	e.logger.Debug("tool execution succeeded", "tool", name, "call_id", call.ID)
	return llm.ToolMessage(call.ID, envelope(name, result, nil)), nil
}

// gated reports whether the call needs confirmation under the policy.
func (e *Engine) gated(v *ValidatedToolCall) bool {
	if e.policy == PolicyAllowAll {
		return false
	}
	tool, ok := e.registry.Get(v.Name)
	return ok && mutates(tool)
}

// envelope normalizes a tool outcome into the uniform wire form:
// {"tool_name": ..., "result": ...} or {"tool_name": ..., "error": ...}.
// This envelope, not the raw tool error, is what the model sees.
func envelope(toolName string, result any, err error) string {
	obj := map[string]any{"tool_name": toolName}
	if err != nil {
		obj["error"] = err.Error()
	} else {
		obj["result"] = result
	}
	out, merr := json.Marshal(obj)
	if merr != nil {
		// The result value itself is unserializable; degrade to an error
		// envelope rather than dropping the reply.
		out, _ = json.Marshal(map[string]any{
			"tool_name": toolName,
			"error":     fmt.Sprintf("tool result could not be serialized: %v", merr),
		})
	}
	return string(out)
}

func compactJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// anyValue widens a typed map for the validator, which accepts generic
// JSON values.
func anyValue(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
