// Package concurrent fans one task out to every registered agent and
// collects the results in arrival order.
package concurrent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/conversation"
	"github.com/vsumner/swarms-go/internal/obslog"
	"github.com/vsumner/swarms-go/workflow"
)

// Errors surfaced by Run and RunBatch.
var (
	ErrEmptyTasksOrAgents = errors.New("tasks or agents are empty")
	ErrTaskAlreadyExists  = errors.New("task already exists")
)

// Workflow fans the same task out to every agent. Each task string may be
// run at most once per workflow instance.
type Workflow struct {
	name              string
	description       string
	metadataOutputDir string
	agents            []agent.Agent
	memory            *conversation.ShortTermMemory
	logger            *slog.Logger

	mu    sync.Mutex
	tasks map[string]struct{}
}

// Builder assembles a concurrent Workflow.
type Builder struct {
	name              string
	description       string
	metadataOutputDir string
	agents            []agent.Agent
	logger            *slog.Logger
}

// NewBuilder starts an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Name sets the workflow name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Description sets the workflow description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// MetadataOutputDir sets where run metadata files are written. Blank
// disables the write.
func (b *Builder) MetadataOutputDir(dir string) *Builder {
	b.metadataOutputDir = dir
	return b
}

// AddAgent registers one agent.
func (b *Builder) AddAgent(a agent.Agent) *Builder {
	b.agents = append(b.agents, a)
	return b
}

// Agents replaces the registered agents.
func (b *Builder) Agents(agents []agent.Agent) *Builder {
	b.agents = append([]agent.Agent(nil), agents...)
	return b
}

// Logger installs a structured logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build assembles the workflow.
func (b *Builder) Build() *Workflow {
	return &Workflow{
		name:              b.name,
		description:       b.description,
		metadataOutputDir: b.metadataOutputDir,
		agents:            b.agents,
		memory:            conversation.NewShortTermMemory(),
		logger:            obslog.ForComponent(b.logger, "concurrent_workflow"),
		tasks:             make(map[string]struct{}),
	}
}

// Run fans task out to every agent and returns the task's conversation.
// Successful outputs are appended in arrival order; failures are logged
// and omitted.
func (w *Workflow) Run(ctx context.Context, task string) (*conversation.Conversation, error) {
	if task == "" || len(w.agents) == 0 {
		return nil, ErrEmptyTasksOrAgents
	}
	if !w.claimTask(task) {
		return nil, ErrTaskAlreadyExists
	}

	w.memory.Add(task, w.name, conversation.UserRole("User"), task)

	outputCh := make(chan workflow.AgentOutput, len(w.agents))
	var wg sync.WaitGroup
	for _, a := range w.agents {
		wg.Add(1)
		go func(a agent.Agent) {
			defer wg.Done()
			out, err := workflow.RunAgentWithOutput(ctx, a, task)
			if err != nil {
				w.logger.Error("agent failed", "agent", a.Name(), "task", task, "error", err)
				return
			}
			outputCh <- out
		}(a)
	}
	wg.Wait()
	close(outputCh)

	outputs := make([]workflow.AgentOutput, 0, len(w.agents))
	for out := range outputCh {
		w.memory.Add(task, w.name, conversation.AssistantRole(out.AgentName), out.Output)
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

	conv, _ := w.memory.Get(task)
	return conv, nil
}

// RunBatch runs every task concurrently and returns a task -> conversation
// map. Per-task failures are logged and omitted.
func (w *Workflow) RunBatch(ctx context.Context, tasks []string) (map[string]*conversation.Conversation, error) {
	if len(tasks) == 0 || len(w.agents) == 0 {
		return nil, ErrEmptyTasksOrAgents
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*conversation.Conversation, len(tasks))
		wg      sync.WaitGroup
	)
	for _, task := range tasks {
		wg.Add(1)
		go func(task string) {
			defer wg.Done()
			conv, err := w.Run(ctx, task)
			if err != nil {
				w.logger.Error("task failed", "task", task, "error", err)
				return
			}
			mu.Lock()
			results[task] = conv
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	return results, nil
}

func (w *Workflow) claimTask(task string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.tasks[task]; exists {
		return false
	}
	w.tasks[task] = struct{}{}
	return true
}
