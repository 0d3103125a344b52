// Package sequential chains agents so each agent's output seeds the next
// agent's input.
package sequential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/conversation"
	"github.com/vsumner/swarms-go/internal/obslog"
	"github.com/vsumner/swarms-go/workflow"
)

// Errors surfaced by Run.
var (
	ErrNoAgents = errors.New("no agents provided")
	ErrNoTasks  = errors.New("no tasks provided")
)

// Workflow runs its agents in order. Agent i observes exactly
// "[From Agent] <name_{i-1}>:\n<output_{i-1}>" as its input.
type Workflow struct {
	name              string
	description       string
	metadataOutputDir string
	agents            []agent.Agent
	logger            *slog.Logger
}

// Builder assembles a sequential Workflow.
type Builder struct {
	workflow Workflow
}

// NewBuilder starts a builder with the standard defaults.
func NewBuilder() *Builder {
	return &Builder{workflow: Workflow{
		name:              "SequentialWorkflow",
		description:       "A workflow solving a problem with sequential agents, each agent's output becomes the input for the next agent.",
		metadataOutputDir: "./temp/sequential_workflow/metadata",
	}}
}

// Name sets the workflow name.
func (b *Builder) Name(name string) *Builder {
	b.workflow.name = name
	return b
}

// Description sets the workflow description.
func (b *Builder) Description(description string) *Builder {
	b.workflow.description = description
	return b
}

// MetadataOutputDir sets where the run metadata file is written. Blank
// disables the write.
func (b *Builder) MetadataOutputDir(dir string) *Builder {
	b.workflow.metadataOutputDir = dir
	return b
}

// AddAgent appends one agent to the chain.
func (b *Builder) AddAgent(a agent.Agent) *Builder {
	b.workflow.agents = append(b.workflow.agents, a)
	return b
}

// Agents replaces the chain.
func (b *Builder) Agents(agents []agent.Agent) *Builder {
	b.workflow.agents = append([]agent.Agent(nil), agents...)
	return b
}

// Logger installs a structured logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.workflow.logger = logger
	return b
}

// Build assembles the workflow.
func (b *Builder) Build() *Workflow {
	w := b.workflow
	w.logger = obslog.ForComponent(w.logger, "sequential_workflow")
	return &w
}

// Run executes the chain for one task and returns the accumulated
// conversation. The metadata file is written only after every agent
// completed.
func (w *Workflow) Run(ctx context.Context, task string) (*conversation.Conversation, error) {
	if len(w.agents) == 0 {
		return nil, ErrNoAgents
	}
	if task == "" {
		return nil, ErrNoTasks
	}

	conv := conversation.New(w.name)
	conv.Add(conversation.UserRole("User"), task)

	nextInput := task
	outputs := make([]workflow.AgentOutput, 0, len(w.agents))
	for _, a := range w.agents {
		out, err := workflow.RunAgentWithOutput(ctx, a, nextInput)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Name(), err)
		}
		conv.Add(conversation.AssistantRole(a.Name()), out.Output)
		nextInput = fmt.Sprintf("[From Agent] %s:\n%s", a.Name(), out.Output)
		outputs = append(outputs, out)
	}

	meta := workflow.Metadata{
		SwarmID:      uuid.NewString(),
		Task:         task,
		Description:  w.description,
		AgentsOutput: outputs,
		Timestamp:    time.Now(),
	}
	if err := workflow.WriteMetadata(ctx, w.metadataOutputDir, meta); err != nil {
		return nil, err
	}

	return conv, nil
}
