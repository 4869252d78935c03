package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolRegistry holds named tools and dispatches execution by name.
//
// Registration compiles and caches each tool's JSON Schema once, so a
// malformed schema fails fast at Register time rather than on the first
// call.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool under its own Name(). A tool with the same name
// already registered is replaced. Returns an error if the tool's schema
// does not compile.
func (r *ToolRegistry) Register(tool Tool) error {
	compiled, err := compileSchema(tool.Name(), tool.Schema())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.compiled[tool.Name()] = compiled
	return nil
}

// Get returns the tool registered under name, if any.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// toolSchema is the {type, function:{name, description, parameters}}
// document embedded verbatim in the system prompt.
type toolSchema struct {
	Type     string         `json:"type"`
	Function toolSchemaFunc `json:"function"`
}

type toolSchemaFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// SchemaDescriptor returns the stable schema listing for every registered
// tool, sorted by tool name, ready to embed in a system prompt.
func (r *ToolRegistry) SchemaDescriptor() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]toolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		descriptors = append(descriptors, toolSchema{
			Type: "function",
			Function: toolSchemaFunc{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Function.Name < descriptors[j].Function.Name
	})

	out, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return []byte("[]")
	}
	return out
}

// Execute validates params against the named tool's schema and dispatches.
// An unknown tool name yields ErrToolNotFound; a schema mismatch yields a
// ToolExecutionError{Kind: KindSchemaViolation} — neither panics.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.compiled[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if err := validateAgainst(schema, params); err != nil {
		return nil, NewToolExecutionError(name, KindSchemaViolation, err)
	}

	return tool.Execute(ctx, params)
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	compiler := jsonschema.NewCompiler()
	resource := "mem://tools/" + name + ".json"
	if err := compiler.AddResource(resource, jsonschemaReader(raw)); err != nil {
		return nil, fmt.Errorf("agent: compiling schema for tool %q: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("agent: compiling schema for tool %q: %w", name, err)
	}
	return schema, nil
}

func validateAgainst(schema *jsonschema.Schema, params json.RawMessage) error {
	if schema == nil {
		return nil
	}
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return fmt.Errorf("parameters are not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return err
	}
	return nil
}
