package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/dallenpyrah/OpenCode/internal/llm"
)

// Tool is a capability the model may invoke. Implementations receive
// arguments that have already passed schema validation, so they may
// assume the declared shape holds.
type Tool interface {
	// Name identifies the tool in the registry and on the wire.
	Name() string

	// Description tells the model what the tool does and how to call it.
	Description() string

	// ParametersSchema returns the JSON Schema the arguments must satisfy.
	ParametersSchema() map[string]any

	// Execute runs the tool. The returned value is serialized into the
	// result envelope; errors should use the taxonomy in errors.go.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Mutator is implemented by tools that change state outside the process
// (writing files, running commands). The security policy gates these
// behind interactive confirmation.
type Mutator interface {
	Mutates() bool
}

// mutates reports whether a tool declares itself state-changing.
func mutates(t Tool) bool {
	m, ok := t.(Mutator)
	return ok && m.Mutates()
}

// Registry holds the available tools, keyed by name. Built once at
// startup and immutable afterwards, so it may be shared by reference
// across sequential invocations.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. A tool registered under an existing name
// replaces the previous one.
func (r *Registry) Register(t Tool) {
	slog.Debug("registering tool", "name", t.Name())
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions renders every tool as a wire definition for the chat
// request, sorted by name so the advertised list is stable across runs.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		params, err := json.Marshal(t.ParametersSchema())
		if err != nil {
			slog.Error("skipping tool with unserializable schema", "tool", name, "error", err)
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return defs
}
