// Package swarmrouter validates a swarm configuration, injects shared rules
// and the collaboration prompt into every agent, and dispatches tasks to
// the chosen workflow engine.
package swarmrouter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/conversation"
	"github.com/vsumner/swarms-go/internal/obslog"
	"github.com/vsumner/swarms-go/workflow/concurrent"
	"github.com/vsumner/swarms-go/workflow/rearrange"
	"github.com/vsumner/swarms-go/workflow/sequential"
)

// SwarmType selects the workflow engine a router dispatches to.
type SwarmType string

const (
	// SwarmSequential chains the agents.
	SwarmSequential SwarmType = "sequential"

	// SwarmConcurrent fans each task out to every agent.
	SwarmConcurrent SwarmType = "concurrent"

	// SwarmRearrange executes the flow string.
	SwarmRearrange SwarmType = "rearrange"
)

// MultiAgentCollabPrompt is prepended to every agent's system prompt when
// collaboration is enabled.
const MultiAgentCollabPrompt = `You are part of a team of specialized agents collaborating on a shared task. ` +
	`Read the contributions of the other agents carefully, build on their work instead of repeating it, ` +
	`flag disagreements explicitly, and keep your response focused on your own area of expertise.`

// ValidationError reports a config that cannot produce a router.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("swarm router validation error: %s", e.Reason)
}

// Router dispatches tasks to the workflow engine selected at construction.
type Router struct {
	kind   SwarmType
	seq    *sequential.Workflow
	conc   *concurrent.Workflow
	rearr  *rearrange.Engine
	logger *slog.Logger
}

// New validates config, applies prompt injection, and builds the router.
func New(config Config) (*Router, error) {
	if len(config.Agents) == 0 {
		return nil, &ValidationError{Reason: "no agents provided for the swarm"}
	}

	logger := obslog.ForComponent(config.Logger, "swarm_router")

	agents := make([]agent.Agent, 0, len(config.Agents))
	for _, a := range config.Agents {
		prompt := a.SystemPrompt()
		if config.MultiAgentCollabPrompt {
			prompt = MultiAgentCollabPrompt + "\n" + prompt
		}
		if config.Rules != "" {
			prompt = prompt + "\n### SWARM RULES ###\n" + config.Rules
		}
		agents = append(agents, a.WithSystemPrompt(prompt))
	}

	router := &Router{kind: config.SwarmType, logger: logger}
	switch config.SwarmType {
	case SwarmSequential:
		router.seq = sequential.NewBuilder().
			Name(config.Name).
			Description(config.Description).
			MetadataOutputDir(config.MetadataOutputDir).
			Agents(agents).
			Logger(config.Logger).
			Build()
	case SwarmConcurrent:
		router.conc = concurrent.NewBuilder().
			Name(config.Name).
			Description(config.Description).
			MetadataOutputDir(config.MetadataOutputDir).
			Agents(agents).
			Logger(config.Logger).
			Build()
	case SwarmRearrange:
		router.rearr = rearrange.NewBuilder().
			Name(config.Name).
			Description(config.Description).
			Agents(agents).
			Flow(config.Flow).
			MaxLoops(config.MaxLoops).
			Rules(config.Rules).
			MetadataOutputDir(config.MetadataOutputDir).
			Logger(config.Logger).
			Build()
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown swarm type %q", config.SwarmType)}
	}

	logger.Info("swarm router initialized", "swarm_type", config.SwarmType, "agents", len(agents))
	return router, nil
}

// Kind returns the selected swarm type.
func (r *Router) Kind() SwarmType {
	return r.kind
}

// Run executes one task on the selected swarm and returns its conversation.
func (r *Router) Run(ctx context.Context, task string) (*conversation.Conversation, error) {
	conv, err := r.run(ctx, task)
	if err != nil {
		r.logger.Error("error executing task on swarm", "task", task, "error", err)
		return nil, err
	}
	return conv, nil
}

func (r *Router) run(ctx context.Context, task string) (*conversation.Conversation, error) {
	r.logger.Info("running task on swarm", "swarm_type", r.kind, "task", task)
	switch r.kind {
	case SwarmSequential:
		return r.seq.Run(ctx, task)
	case SwarmConcurrent:
		return r.conc.Run(ctx, task)
	default:
		engine := r.rearr.Clone()
		if _, err := engine.Run(ctx, task); err != nil {
			return nil, err
		}
		return engine.Conversation(), nil
	}
}

// BatchRun executes every task and returns a task -> conversation map.
func (r *Router) BatchRun(ctx context.Context, tasks []string) (map[string]*conversation.Conversation, error) {
	r.logger.Info("running batch tasks on swarm", "swarm_type", r.kind, "tasks", len(tasks))
	switch r.kind {
	case SwarmSequential:
		results := make(map[string]*conversation.Conversation, len(tasks))
		for _, task := range tasks {
			conv, err := r.seq.Run(ctx, task)
			if err != nil {
				return nil, err
			}
			results[task] = conv
		}
		return results, nil
	case SwarmConcurrent:
		return r.conc.RunBatch(ctx, tasks)
	default:
		var (
			mu       sync.Mutex
			results  = make(map[string]*conversation.Conversation, len(tasks))
			errOnce  sync.Once
			firstErr error
			wg       sync.WaitGroup
		)
		for _, task := range tasks {
			wg.Add(1)
			go func(task string) {
				defer wg.Done()
				engine := r.rearr.Clone()
				if _, err := engine.Run(ctx, task); err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				mu.Lock()
				results[task] = engine.Conversation()
				mu.Unlock()
			}(task)
		}
		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}
		return results, nil
	}
}
