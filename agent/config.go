package agent

import (
	"strings"

	"github.com/google/uuid"
)

// Config is the immutable configuration of an agent. Built once, shared by
// reference, never mutated after build.
type Config struct {
	// ID is a fresh UUID assigned at construction.
	ID string `json:"id"`

	// Name is the agent's human name, used as a key in flows.
	Name string `json:"name"`

	// UserName tags the user turns this agent appends.
	UserName string `json:"user_name"`

	// Description is free-form.
	Description string `json:"description,omitempty"`

	// Temperature controls sampling, 0-2.
	Temperature float64 `json:"temperature"`

	// MaxLoops bounds autonomous iterations. At least 1.
	MaxLoops int `json:"max_loops"`

	// MaxTokens limits response length.
	MaxTokens int `json:"max_tokens"`

	// PlanEnabled issues a planning call before the main loop.
	PlanEnabled bool `json:"plan_enabled"`

	// PlanningPrompt prefixes the task in the planning call.
	PlanningPrompt string `json:"planning_prompt,omitempty"`

	// Autosave writes conversation snapshots at checkpoints.
	Autosave bool `json:"autosave"`

	// RetryAttempts bounds model calls per loop iteration.
	RetryAttempts int `json:"retry_attempts"`

	// RAGEveryLoop is reserved; the retrieval path is not implemented.
	RAGEveryLoop bool `json:"rag_every_loop"`

	// SaveStateDir is where snapshots are written when Autosave is set.
	SaveStateDir string `json:"save_state_dir,omitempty"`

	// StopWords terminate the loop when any is a substring of the latest
	// assistant text.
	StopWords []string `json:"stop_words"`

	// TaskEvaluatorToolEnabled gates the task evaluator tool.
	TaskEvaluatorToolEnabled bool `json:"task_evaluator_tool_enabled"`

	// ConcurrentToolCallEnabled allows concurrent tool dispatch.
	ConcurrentToolCallEnabled bool `json:"concurrent_tool_call_enabled"`

	// Verbose enables debug-level run loop logging.
	Verbose bool `json:"verbose"`
}

// DefaultConfig returns a config with a fresh ID and the standard defaults.
func DefaultConfig() Config {
	return Config{
		ID:                        uuid.NewString(),
		Name:                      "Agent",
		UserName:                  "User",
		Temperature:               0.7,
		MaxLoops:                  1,
		MaxTokens:                 8192,
		RetryAttempts:             3,
		TaskEvaluatorToolEnabled:  true,
		ConcurrentToolCallEnabled: true,
	}
}

func (c Config) hasStopWord(response string) bool {
	for _, word := range c.StopWords {
		if word != "" && strings.Contains(response, word) {
			return true
		}
	}
	return false
}
