// Package batch runs many tasks against many agents under a bounded
// concurrency pool.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/conversation"
	"github.com/vsumner/swarms-go/internal/obslog"
)

// Errors surfaced by ExecuteBatch.
var (
	ErrNoAgents = errors.New("no agents provided")
	ErrNoTasks  = errors.New("no tasks provided")
)

// Config controls batch execution.
type Config struct {
	// MaxConcurrentTasks caps in-flight tasks. Zero defers to the worker
	// thread calculation.
	MaxConcurrentTasks int

	// AutoCPUOptimization sizes the pool to the logical core count.
	AutoCPUOptimization bool

	// WorkerThreads overrides AutoCPUOptimization when set.
	WorkerThreads int
}

// DefaultConfig enables CPU-count pool sizing.
func DefaultConfig() Config {
	return Config{AutoCPUOptimization: true}
}

// Executor runs every (agent, task) pair under the bounded pool.
type Executor struct {
	agents []agent.Agent
	config Config
	logger *slog.Logger
}

// Builder assembles an Executor.
type Builder struct {
	agents []agent.Agent
	config Config
	logger *slog.Logger
}

// NewBuilder starts a builder with default config.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
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

// Config replaces the execution config.
func (b *Builder) Config(config Config) *Builder {
	b.config = config
	return b
}

// Logger installs a structured logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build assembles the executor.
func (b *Builder) Build() *Executor {
	return &Executor{
		agents: b.agents,
		config: b.config,
		logger: obslog.ForComponent(b.logger, "batch_executor"),
	}
}

// NewExecutor builds an executor directly from agents and config.
func NewExecutor(agents []agent.Agent, config Config) *Executor {
	return &Executor{
		agents: agents,
		config: config,
		logger: obslog.ForComponent(nil, "batch_executor"),
	}
}

// optimalThreads resolves the pool size: explicit worker threads, then CPU
// count when auto optimization is on, then a fixed default.
func (e *Executor) optimalThreads() int {
	if e.config.WorkerThreads > 0 {
		return e.config.WorkerThreads
	}
	if !e.config.AutoCPUOptimization {
		return 4
	}
	return runtime.NumCPU()
}

// ExecuteBatch runs every task against every agent under the bounded pool
// and returns a task -> conversation map. Each task's conversation is
// seeded with the task and carries each agent's output; per-pair failures
// are logged and omitted.
func (e *Executor) ExecuteBatch(ctx context.Context, tasks []string) (map[string]*conversation.Conversation, error) {
	if len(e.agents) == 0 {
		return nil, ErrNoAgents
	}
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	maxConcurrent := e.config.MaxConcurrentTasks
	if maxConcurrent <= 0 {
		maxConcurrent = e.optimalThreads()
	}

	e.logger.Info("starting batch execution",
		"tasks", len(tasks), "agents", len(e.agents), "max_concurrent", maxConcurrent)

	var (
		mu      sync.Mutex
		results = make(map[string]*conversation.Conversation, len(tasks))
	)

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			conv := conversation.New("batch")
			conv.Add(conversation.UserRole("User"), task)
			for _, a := range e.agents {
				output, err := a.Run(ctx, task)
				if err != nil {
					e.logger.Error("agent failed to process task",
						"agent", a.Name(), "task", task, "error", err)
					continue
				}
				conv.Add(conversation.AssistantRole(a.Name()), output)
			}

			mu.Lock()
			results[task] = conv
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	e.logger.Info("batch execution completed", "results", len(results))
	return results, nil
}
