package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache compiles each tool's parameter schema once and reuses the
// compiled form across invocations. A schema that fails to compile is an
// internal error (the tool author's bug), never an argument error.
type schemaCache struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{compiled: make(map[string]*jsonschema.Schema)}
}

// get returns the compiled schema for a tool, compiling on first use.
func (c *schemaCache) get(t Tool) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sch, ok := c.compiled[t.Name()]; ok {
		return sch, nil
	}
	sch, err := compileSchema(t.Name(), t.ParametersSchema())
	if err != nil {
		return nil, err
	}
	c.compiled[t.Name()] = sch
	return sch, nil
}

// compileSchema compiles a JSON Schema document for the named tool.
func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("serializing schema for tool %q: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing schema for tool %q: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("registering schema for tool %q: %w", name, err)
	}
	sch, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compiling schema for tool %q: %w", name, err)
	}
	return sch, nil
}

// validationDetails flattens a validation failure into one human-readable
// string. The wording comes from the validator and names the failing
// instance path and constraint, which is what the model needs to fix its
// arguments.
func validationDetails(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}
