// Package rearrange executes tasks over named agents according to a flow
// string mixing sequential and parallel steps, e.g. "a -> b,c -> d".
package rearrange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/conversation"
	"github.com/vsumner/swarms-go/internal/obslog"
	"github.com/vsumner/swarms-go/persistence"
)

// HumanToken is the reserved flow token marking a human-in-the-loop step.
// It is currently a no-op that logs and leaves the current input unchanged.
const HumanToken = "H"

// OutputType selects how Run formats its result.
type OutputType string

const (
	// OutputAll concatenates "<name>: <response>\n" across the last
	// response map.
	OutputAll OutputType = "all"

	// OutputFinal returns the final sequential agent's last text.
	OutputFinal OutputType = "final"

	// OutputList returns the responses as an array.
	OutputList OutputType = "list"

	// OutputDict returns a name -> response map.
	OutputDict OutputType = "dict"
)

// Errors surfaced by validation and execution.
var (
	ErrEmptyTasksOrAgents  = errors.New("tasks or agents are empty")
	ErrDuplicateAgentNames = errors.New("duplicate agent names in flow are not allowed")
)

// FlowValidationError reports a flow that cannot be executed.
type FlowValidationError struct {
	Reason string
}

func (e *FlowValidationError) Error() string {
	return fmt.Sprintf("flow validation error: %s", e.Reason)
}

// InvalidFlowFormatError reports a malformed flow string.
type InvalidFlowFormatError struct {
	Detail string
}

func (e *InvalidFlowFormatError) Error() string {
	return fmt.Sprintf("invalid flow format: %s", e.Detail)
}

// AgentNotFoundError names a flow reference to an unregistered agent.
type AgentNotFoundError struct {
	Name string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent '%s' not found", e.Name)
}

// Engine runs tasks through the configured flow.
type Engine struct {
	id                string
	name              string
	description       string
	agents            map[string]agent.Agent
	flow              string
	maxLoops          int
	outputType        OutputType
	autosave          bool
	returnJSON        bool
	metadataOutputDir string
	rules             string
	conv              *conversation.Conversation
	logger            *slog.Logger
}

// Builder assembles an Engine.
type Builder struct {
	name              string
	description       string
	agents            []agent.Agent
	flow              string
	maxLoops          int
	outputType        OutputType
	autosave          bool
	returnJSON        bool
	metadataOutputDir string
	rules             string
	logger            *slog.Logger
}

// NewBuilder starts an empty builder.
func NewBuilder() *Builder {
	return &Builder{outputType: OutputAll}
}

// Name sets the engine name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Description sets the engine description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// AddAgent registers one agent under its name.
func (b *Builder) AddAgent(a agent.Agent) *Builder {
	b.agents = append(b.agents, a)
	return b
}

// Agents registers all given agents.
func (b *Builder) Agents(agents []agent.Agent) *Builder {
	b.agents = append(b.agents, agents...)
	return b
}

// Flow sets the flow pattern.
func (b *Builder) Flow(flow string) *Builder {
	b.flow = flow
	return b
}

// MaxLoops sets the number of execution loops.
func (b *Builder) MaxLoops(maxLoops int) *Builder {
	b.maxLoops = maxLoops
	return b
}

// OutputType selects the result format.
func (b *Builder) OutputType(outputType OutputType) *Builder {
	b.outputType = outputType
	return b
}

// Autosave enables metadata persistence after each run.
func (b *Builder) Autosave(autosave bool) *Builder {
	b.autosave = autosave
	return b
}

// ReturnJSON renders List and Dict outputs as JSON.
func (b *Builder) ReturnJSON(returnJSON bool) *Builder {
	b.returnJSON = returnJSON
	return b
}

// MetadataOutputDir sets where run metadata is written.
func (b *Builder) MetadataOutputDir(dir string) *Builder {
	b.metadataOutputDir = dir
	return b
}

// Rules sets the rules injected into the conversation at run start.
func (b *Builder) Rules(rules string) *Builder {
	b.rules = rules
	return b
}

// Logger installs a structured logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build assembles the engine.
func (b *Builder) Build() *Engine {
	name := b.name
	if name == "" {
		name = "AgentRearrange"
	}
	maxLoops := b.maxLoops
	if maxLoops < 1 {
		maxLoops = 1
	}
	agents := make(map[string]agent.Agent, len(b.agents))
	for _, a := range b.agents {
		agents[a.Name()] = a
	}
	return &Engine{
		id:                uuid.NewString(),
		name:              name,
		description:       b.description,
		agents:            agents,
		flow:              b.flow,
		maxLoops:          maxLoops,
		outputType:        b.outputType,
		autosave:          b.autosave,
		returnJSON:        b.returnJSON,
		metadataOutputDir: b.metadataOutputDir,
		rules:             b.rules,
		conv:              conversation.New(name),
		logger:            obslog.ForComponent(b.logger, "rearrange"),
	}
}

// ID returns the engine's unique identifier.
func (e *Engine) ID() string { return e.id }

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Flow returns the current flow pattern.
func (e *Engine) Flow() string { return e.flow }

// SetFlow replaces the flow pattern.
func (e *Engine) SetFlow(flow string) { e.flow = flow }

// AgentNames returns the registered agent names.
func (e *Engine) AgentNames() []string {
	names := make([]string, 0, len(e.agents))
	for name := range e.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conversation returns the engine's conversation log.
func (e *Engine) Conversation() *conversation.Conversation {
	return e.conv
}

// ValidateFlow checks the flow is non-empty, well-formed, and references
// only registered agents (or the human placeholder).
func (e *Engine) ValidateFlow() error {
	stages, err := e.parseFlow()
	if err != nil {
		return err
	}
	for _, stage := range stages {
		seen := make(map[string]struct{}, len(stage))
		for _, name := range stage {
			if name == HumanToken {
				continue
			}
			if _, ok := e.agents[name]; !ok {
				return &AgentNotFoundError{Name: name}
			}
			if _, dup := seen[name]; dup {
				return ErrDuplicateAgentNames
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}

// parseFlow splits the flow string into stages: "->" separates stages,
// "," separates parallel members within a stage.
func (e *Engine) parseFlow() ([][]string, error) {
	if strings.TrimSpace(e.flow) == "" {
		return nil, &FlowValidationError{Reason: "flow cannot be empty"}
	}

	var rawStages []string
	if strings.Contains(e.flow, "->") {
		rawStages = strings.Split(e.flow, "->")
	} else {
		rawStages = []string{e.flow}
	}

	stages := make([][]string, 0, len(rawStages))
	for _, raw := range rawStages {
		if strings.TrimSpace(raw) == "" {
			return nil, &InvalidFlowFormatError{Detail: "empty stage"}
		}
		var stage []string
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, &InvalidFlowFormatError{Detail: fmt.Sprintf("empty agent name in stage %q", strings.TrimSpace(raw))}
			}
			stage = append(stage, name)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// Run executes the flow for one task and returns the result formatted per
// the configured output type.
func (e *Engine) Run(ctx context.Context, task string) (string, error) {
	e.conv.Add(conversation.UserRole("System"), task)

	if err := e.ValidateFlow(); err != nil {
		return "", err
	}

	if e.rules != "" {
		e.conv.Add(conversation.UserRole("System"), "Rules: "+e.rules)
	}

	stages, err := e.parseFlow()
	if err != nil {
		return "", err
	}

	currentTask := task
	responseMap := make(map[string]string)

	for loop := 0; loop < e.maxLoops; loop++ {
		for _, stage := range stages {
			if len(stage) > 1 {
				results, err := e.runParallel(ctx, stage, currentTask)
				if err != nil {
					return "", err
				}
				for name, result := range results {
					e.conv.Add(conversation.AssistantRole(name), result)
					responseMap[name] = result
				}
				currentTask = e.formatOutput(results, currentTask)
				continue
			}

			name := stage[0]
			if name == HumanToken {
				e.logger.Info("human intervention point")
				continue
			}

			a, ok := e.agents[name]
			if !ok {
				return "", &AgentNotFoundError{Name: name}
			}

			result, err := a.Run(ctx, e.conv.String())
			if err != nil {
				return "", fmt.Errorf("agent %s: %w", name, err)
			}
			e.conv.Add(conversation.AssistantRole(name), result)
			responseMap[name] = result
			currentTask = result
		}
	}

	output := e.formatOutput(responseMap, currentTask)

	if e.autosave {
		if err := e.saveMetadata(ctx); err != nil {
			return "", err
		}
	}

	return output, nil
}

// runParallel fans currentTask out to each named agent and collects the
// results in a name -> response map.
func (e *Engine) runParallel(ctx context.Context, names []string, task string) (map[string]string, error) {
	type outcome struct {
		name   string
		result string
		err    error
	}

	ch := make(chan outcome, len(names))
	var wg sync.WaitGroup
	for _, name := range names {
		if name == HumanToken {
			continue
		}
		a, ok := e.agents[name]
		if !ok {
			return nil, &AgentNotFoundError{Name: name}
		}

		wg.Add(1)
		go func(name string, a agent.Agent) {
			defer wg.Done()
			result, err := a.CloneBox().Run(ctx, task)
			ch <- outcome{name: name, result: result, err: err}
		}(name, a)
	}
	wg.Wait()
	close(ch)

	results := make(map[string]string, len(names))
	for out := range ch {
		if out.err != nil {
			return nil, fmt.Errorf("agent %s: %w", out.name, out.err)
		}
		results[out.name] = out.result
	}
	return results, nil
}

// formatOutput renders the response map per the configured output type.
func (e *Engine) formatOutput(responseMap map[string]string, finalResult string) string {
	names := make([]string, 0, len(responseMap))
	for name := range responseMap {
		names = append(names, name)
	}
	sort.Strings(names)

	switch e.outputType {
	case OutputFinal:
		return finalResult
	case OutputList:
		responses := make([]string, 0, len(names))
		for _, name := range names {
			responses = append(responses, responseMap[name])
		}
		if e.returnJSON {
			data, err := json.Marshal(responses)
			if err != nil {
				return "[]"
			}
			return string(data)
		}
		return strings.Join(responses, "\n")
	case OutputDict:
		if e.returnJSON {
			data, err := json.Marshal(responseMap)
			if err != nil {
				return "{}"
			}
			return string(data)
		}
		lines := make([]string, 0, len(names))
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s: %s", name, responseMap[name]))
		}
		return strings.Join(lines, "\n")
	default: // OutputAll
		var b strings.Builder
		for _, name := range names {
			fmt.Fprintf(&b, "%s: %s\n", name, responseMap[name])
		}
		return b.String()
	}
}

// BatchRun processes tasks in chunks of batchSize, each chunk in parallel
// over lightweight clones of the engine.
func (e *Engine) BatchRun(ctx context.Context, tasks []string, batchSize int) ([]string, error) {
	if len(tasks) == 0 || len(e.agents) == 0 {
		return nil, ErrEmptyTasksOrAgents
	}
	if batchSize < 1 {
		batchSize = 1
	}

	results := make([]string, 0, len(tasks))
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		chunk := tasks[start:end]

		chunkResults := make([]string, len(chunk))
		chunkErrs := make([]error, len(chunk))
		var wg sync.WaitGroup
		for i, task := range chunk {
			wg.Add(1)
			go func(i int, task string) {
				defer wg.Done()
				clone := e.Clone()
				chunkResults[i], chunkErrs[i] = clone.Run(ctx, task)
			}(i, task)
		}
		wg.Wait()

		for i := range chunk {
			if chunkErrs[i] != nil {
				return nil, chunkErrs[i]
			}
			results = append(results, chunkResults[i])
		}
	}
	return results, nil
}

// ConcurrentRun processes every task at once, bounded by maxConcurrent
// (default 8 when zero or negative).
func (e *Engine) ConcurrentRun(ctx context.Context, tasks []string, maxConcurrent int) ([]string, error) {
	if len(tasks) == 0 || len(e.agents) == 0 {
		return nil, ErrEmptyTasksOrAgents
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	sem := make(chan struct{}, maxConcurrent)
	results := make([]string, len(tasks))
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			clone := e.Clone()
			results[i], errs[i] = clone.Run(ctx, task)
		}(i, task)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Clone returns a lightweight view for running one task in parallel:
// agents are cloned via CloneBox, the conversation is fresh, and autosave
// is disabled.
func (e *Engine) Clone() *Engine {
	agents := make(map[string]agent.Agent, len(e.agents))
	for name, a := range e.agents {
		agents[name] = a.CloneBox()
	}
	return &Engine{
		id:                e.id,
		name:              e.name,
		description:       e.description,
		agents:            agents,
		flow:              e.flow,
		maxLoops:          e.maxLoops,
		outputType:        e.outputType,
		autosave:          false,
		returnJSON:        e.returnJSON,
		metadataOutputDir: e.metadataOutputDir,
		rules:             e.rules,
		conv:              conversation.New(e.name + "-clone"),
		logger:            e.logger,
	}
}

// saveMetadata persists a run summary to <metadata_output_dir>/<id>.json.
func (e *Engine) saveMetadata(ctx context.Context) error {
	if e.metadataOutputDir == "" {
		return nil
	}

	meta := map[string]any{
		"id":                  e.id,
		"name":                e.name,
		"description":         e.description,
		"flow":                e.flow,
		"max_loops":           e.maxLoops,
		"agents":              e.AgentNames(),
		"conversation_length": e.conv.Len(),
		"timestamp":           time.Now().UnixMilli(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(e.metadataOutputDir, e.id+".json")
	return persistence.SaveToFile(ctx, data, path)
}
