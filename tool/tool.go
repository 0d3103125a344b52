// Package tool implements the typed tool contract the agent runtime
// dispatches against: definitions exposed to the model, JSON-in/JSON-out
// invocation, schema validation, and the adapter for external tool servers.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vsumner/swarms-go/llm"
)

// Tool is the erased form every tool takes at the runtime boundary:
// arguments arrive as a JSON document and output leaves JSON-serialized.
type Tool interface {
	// Definition returns the schema exposed to the model.
	Definition() llm.ToolDefinition

	// Call invokes the tool. args must satisfy the definition's parameter
	// schema; the result is the tool's JSON-serialized output.
	Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

// ErrorKind categorizes tool failures.
type ErrorKind string

const (
	// ErrorKindJSON indicates argument parsing or result serialization failed.
	ErrorKindJSON ErrorKind = "json"

	// ErrorKindCall indicates the tool itself returned an error.
	ErrorKindCall ErrorKind = "call"
)

// Error is a categorized tool failure.
type Error struct {
	Kind ErrorKind
	Tool string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewJSONError wraps an argument-parse or result-serialize failure.
func NewJSONError(tool string, err error) *Error {
	return &Error{Kind: ErrorKindJSON, Tool: tool, Err: err}
}

// NewCallError wraps a failure returned by the tool itself.
func NewCallError(tool string, err error) *Error {
	return &Error{Kind: ErrorKindCall, Tool: tool, Err: err}
}

// Func adapts a plain function into a Tool. The function's return value is
// JSON-serialized to form the tool output.
type Func struct {
	def llm.ToolDefinition
	fn  func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewFunc builds a Tool from a definition and a callback.
func NewFunc(def llm.ToolDefinition, fn func(ctx context.Context, args json.RawMessage) (any, error)) *Func {
	return &Func{def: def, fn: fn}
}

// Definition implements Tool.
func (f *Func) Definition() llm.ToolDefinition {
	return f.def
}

// Call implements Tool.
func (f *Func) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	if len(args) > 0 && !json.Valid(args) {
		return nil, NewJSONError(f.def.Name, fmt.Errorf("arguments are not valid JSON"))
	}

	out, err := f.fn(ctx, args)
	if err != nil {
		return nil, NewCallError(f.def.Name, err)
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, NewJSONError(f.def.Name, err)
	}
	return encoded, nil
}
