package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vsumner/swarms-go/llm"
)

// Registry maps tool names to implementations and validates arguments
// against each tool's parameter schema before dispatch. Lookup is
// case-sensitive. Read-mostly: no registration after the owning agent is
// built.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t under its definition name, replacing any previous tool
// with the same name.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the registered tool definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Call validates args against the named tool's parameter schema and
// dispatches. Unknown names return (nil, false, nil) so the caller can
// distinguish a missing tool from a failing one.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, bool, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, false, nil
	}

	if err := validateArgs(t.Definition(), args); err != nil {
		return nil, true, err
	}

	out, err := t.Call(ctx, args)
	return out, true, err
}

var schemaCache sync.Map

func validateArgs(def llm.ToolDefinition, args json.RawMessage) error {
	if len(def.Parameters) == 0 {
		return nil
	}

	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return NewJSONError(def.Name, fmt.Errorf("compile parameter schema: %w", err))
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return NewJSONError(def.Name, fmt.Errorf("decode arguments: %w", err))
	}

	if err := schema.Validate(decoded); err != nil {
		return NewJSONError(def.Name, fmt.Errorf("arguments invalid: %w", err))
	}
	return nil
}

func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.parameters.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
