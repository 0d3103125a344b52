// Package agent implements the per-agent run loop — prompting, tool
// execution, retry, planning, stop-word detection, and state snapshots —
// together with the Agent contract every workflow engine consumes.
package agent

import (
	"context"
	"errors"
	"fmt"
)

// Agent is the contract consumed by every workflow engine.
type Agent interface {
	// ID returns the agent's stable unique identifier.
	ID() string

	// Name returns the agent's human name, used as a key in flows.
	Name() string

	// Description returns the agent's free-form description.
	Description() string

	// Run executes the autonomous loop for one task and returns the
	// concatenated responses.
	Run(ctx context.Context, task string) (string, error)

	// RunMultipleTasks runs every task concurrently and returns the
	// successful results; failures are logged and omitted.
	RunMultipleTasks(ctx context.Context, tasks []string) ([]string, error)

	// IsResponseComplete reports whether response contains any configured
	// stop word.
	IsResponseComplete(response string) bool

	// CloneBox returns a copy cheap enough to run in a parallel stage.
	CloneBox() Agent
}

// ErrNoChoiceFound indicates the provider returned an empty assistant turn.
var ErrNoChoiceFound = errors.New("no choice found")

// ToolNotFoundError indicates the model called a tool the agent does not have.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %s not found", e.Name)
}

// InvalidSaveStatePathError indicates the snapshot directory could not be
// resolved.
type InvalidSaveStatePathError struct {
	Path string
}

func (e *InvalidSaveStatePathError) Error() string {
	return fmt.Sprintf("invalid save state path: %s", e.Path)
}

// CompletionError wraps a provider failure observed by the run loop.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion error: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
