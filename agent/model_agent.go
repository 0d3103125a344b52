package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vsumner/swarms-go/conversation"
	"github.com/vsumner/swarms-go/internal/obslog"
	"github.com/vsumner/swarms-go/internal/retrypolicy"
	"github.com/vsumner/swarms-go/internal/taskhash"
	"github.com/vsumner/swarms-go/llm"
	"github.com/vsumner/swarms-go/persistence"
	"github.com/vsumner/swarms-go/tool"
)

// ModelAgent is the model-backed Agent implementation: it drives an LLM
// provider with the task conversation, dispatches tool calls, and applies
// the retry and stop-word policies from its Config.
type ModelAgent struct {
	provider     llm.Provider
	config       Config
	systemPrompt string
	shortMemory  *conversation.ShortTermMemory
	tools        *tool.Registry
	cache        ResponseCache
	retry        retrypolicy.Config
	logger       *slog.Logger
}

// Builder assembles a ModelAgent.
type Builder struct {
	provider     llm.Provider
	config       Config
	systemPrompt string
	tools        []tool.Tool
	cache        ResponseCache
	retry        retrypolicy.Config
	logger       *slog.Logger
}

// NewBuilder starts a builder around the given provider with default config.
func NewBuilder(provider llm.Provider) *Builder {
	return &Builder{
		provider: provider,
		config:   DefaultConfig(),
		retry:    retrypolicy.DefaultConfig(),
	}
}

// Config replaces the whole configuration.
func (b *Builder) Config(config Config) *Builder {
	b.config = config
	return b
}

// AgentName sets the agent's name.
func (b *Builder) AgentName(name string) *Builder {
	b.config.Name = name
	return b
}

// UserName sets the name tagging user turns.
func (b *Builder) UserName(name string) *Builder {
	b.config.UserName = name
	return b
}

// Description sets the agent description.
func (b *Builder) Description(description string) *Builder {
	b.config.Description = description
	return b
}

// SystemPrompt sets the system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

// Temperature sets the sampling temperature.
func (b *Builder) Temperature(temperature float64) *Builder {
	b.config.Temperature = temperature
	return b
}

// MaxTokens sets the response length limit.
func (b *Builder) MaxTokens(maxTokens int) *Builder {
	b.config.MaxTokens = maxTokens
	return b
}

// MaxLoops bounds autonomous iterations.
func (b *Builder) MaxLoops(maxLoops int) *Builder {
	b.config.MaxLoops = maxLoops
	return b
}

// EnablePlan turns on planning with the given prompt prefix.
func (b *Builder) EnablePlan(planningPrompt string) *Builder {
	b.config.PlanEnabled = true
	b.config.PlanningPrompt = planningPrompt
	return b
}

// EnableAutosave turns on state snapshots.
func (b *Builder) EnableAutosave() *Builder {
	b.config.Autosave = true
	return b
}

// RetryAttempts bounds model calls per loop iteration.
func (b *Builder) RetryAttempts(attempts int) *Builder {
	b.config.RetryAttempts = attempts
	return b
}

// SaveStateDir sets where snapshots are written.
func (b *Builder) SaveStateDir(dir string) *Builder {
	b.config.SaveStateDir = dir
	return b
}

// AddStopWord adds one stop word.
func (b *Builder) AddStopWord(word string) *Builder {
	b.config.StopWords = append(b.config.StopWords, word)
	return b
}

// StopWords replaces the stop word set.
func (b *Builder) StopWords(words []string) *Builder {
	b.config.StopWords = append([]string(nil), words...)
	return b
}

// Verbose toggles debug-level run loop logging.
func (b *Builder) Verbose(verbose bool) *Builder {
	b.config.Verbose = verbose
	return b
}

// AddTool registers a tool with the agent.
func (b *Builder) AddTool(t tool.Tool) *Builder {
	b.tools = append(b.tools, t)
	return b
}

// Cache installs a response cache.
func (b *Builder) Cache(cache ResponseCache) *Builder {
	b.cache = cache
	return b
}

// RetryPolicy replaces the backoff schedule between retry attempts.
func (b *Builder) RetryPolicy(config retrypolicy.Config) *Builder {
	b.retry = config
	return b
}

// Logger installs a structured logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build assembles the agent.
func (b *Builder) Build() *ModelAgent {
	registry := tool.NewRegistry()
	for _, t := range b.tools {
		registry.Register(t)
	}
	if b.config.MaxLoops < 1 {
		b.config.MaxLoops = 1
	}
	return &ModelAgent{
		provider:     b.provider,
		config:       b.config,
		systemPrompt: b.systemPrompt,
		shortMemory:  conversation.NewShortTermMemory(),
		tools:        registry,
		cache:        b.cache,
		retry:        b.retry,
		logger:       obslog.ForComponent(b.logger, "agent"),
	}
}

// ID implements Agent.
func (a *ModelAgent) ID() string { return a.config.ID }

// Name implements Agent.
func (a *ModelAgent) Name() string { return a.config.Name }

// Description implements Agent.
func (a *ModelAgent) Description() string { return a.config.Description }

// SystemPrompt returns the agent's system prompt.
func (a *ModelAgent) SystemPrompt() string { return a.systemPrompt }

// WithSystemPrompt returns a copy of the agent using the given system
// prompt. The original is unchanged.
func (a *ModelAgent) WithSystemPrompt(prompt string) *ModelAgent {
	clone := a.clone()
	clone.systemPrompt = prompt
	return clone
}

// Config returns the agent's configuration.
func (a *ModelAgent) Config() Config { return a.config }

// Conversation returns the conversation for task, if the agent has one.
func (a *ModelAgent) Conversation(task string) (*conversation.Conversation, bool) {
	return a.shortMemory.Get(task)
}

// IsResponseComplete implements Agent.
func (a *ModelAgent) IsResponseComplete(response string) bool {
	return a.config.hasStopWord(response)
}

// CloneBox implements Agent. The clone shares provider, tools, and config
// but owns a fresh short-term memory so it can run in a parallel stage.
func (a *ModelAgent) CloneBox() Agent {
	return a.clone()
}

func (a *ModelAgent) clone() *ModelAgent {
	return &ModelAgent{
		provider:     a.provider,
		config:       a.config,
		systemPrompt: a.systemPrompt,
		shortMemory:  conversation.NewShortTermMemory(),
		tools:        a.tools,
		cache:        a.cache,
		retry:        a.retry,
		logger:       a.logger,
	}
}

// Run implements Agent. Each loop iteration makes up to RetryAttempts model
// calls and stops at the first success. An iteration without a success ends
// the loop, as does a response containing a stop word. Run returns the
// successful responses concatenated, which is empty with a nil error when
// every attempt failed. An unknown tool or a tool error aborts the run.
func (a *ModelAgent) Run(ctx context.Context, task string) (string, error) {
	a.shortMemory.Add(task, a.config.Name, conversation.UserRole(a.config.UserName), task)

	if a.config.PlanEnabled {
		if err := a.Plan(ctx, task); err != nil {
			return "", err
		}
	}

	if a.config.Autosave {
		if err := a.SaveTaskState(ctx, task); err != nil {
			return "", err
		}
	}

	var lastResponse string
	var allResponses []string
	for loop := 0; loop < a.config.MaxLoops; loop++ {
		success := false
		for attempt := 1; attempt <= a.config.RetryAttempts && !success; attempt++ {
			history := a.historyMessages(task)
			response, err := a.chat(ctx, task, history)
			if err != nil {
				if isFatalRunError(err) {
					return "", err
				}
				a.handleErrorInAttempts(ctx, task, err, attempt)
				if attempt < a.config.RetryAttempts {
					if werr := retrypolicy.Wait(ctx, a.retry, attempt); werr != nil {
						return "", werr
					}
				}
				continue
			}

			a.shortMemory.Add(task, a.config.Name, conversation.AssistantRole(a.config.Name), response)
			allResponses = append(allResponses, response)
			lastResponse = response
			success = true
		}

		if !success {
			break
		}

		if a.IsResponseComplete(lastResponse) {
			break
		}
	}

	if a.config.Autosave {
		if err := a.SaveTaskState(ctx, task); err != nil {
			return "", err
		}
	}

	return strings.Join(allResponses, ""), nil
}

// RunMultipleTasks implements Agent. Tasks run concurrently with no
// inter-task ordering guarantees; failures are logged and omitted.
func (a *ModelAgent) RunMultipleTasks(ctx context.Context, tasks []string) ([]string, error) {
	var (
		mu      sync.Mutex
		results []string
		wg      sync.WaitGroup
	)

	for _, task := range tasks {
		wg.Add(1)
		go func(task string) {
			defer wg.Done()
			result, err := a.Run(ctx, task)
			if err != nil {
				a.logger.Error("task failed", "agent", a.config.Name, "task", task, "error", err)
				return
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	return results, nil
}

// Plan issues one planning completion and records the plan in the task's
// conversation before the main loop starts. The returned plan is trusted
// verbatim.
func (a *ModelAgent) Plan(ctx context.Context, task string) error {
	if a.config.PlanningPrompt == "" {
		return nil
	}

	prompt := fmt.Sprintf("%s %s", a.config.PlanningPrompt, task)
	plan, err := a.chat(ctx, prompt, nil)
	if err != nil {
		return err
	}

	if a.config.Verbose {
		a.logger.Debug("plan", "agent", a.config.Name, "plan", plan)
	}
	a.shortMemory.Add(task, a.config.Name, conversation.AssistantRole(a.config.Name), plan)
	return nil
}

// SaveTaskState writes the task's conversation as JSON to
// <save_state_dir>/<agent_name>_<task_hash>.json.
func (a *ModelAgent) SaveTaskState(ctx context.Context, task string) error {
	if a.config.SaveStateDir == "" {
		return nil
	}

	dir, err := resolveStateDir(a.config.SaveStateDir)
	if err != nil {
		return err
	}

	conv, ok := a.shortMemory.Get(task)
	if !ok {
		return nil
	}
	data, err := json.MarshalIndent(conv.History(), "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", a.config.Name, taskhash.Sum32Hex(task)))
	return persistence.SaveToFile(ctx, data, path)
}

// resolveStateDir returns the directory snapshots go to. A file path
// resolves to its parent directory.
func resolveStateDir(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path, nil
	}
	parent := filepath.Dir(path)
	if parent == path || parent == "" {
		return "", &InvalidSaveStatePathError{Path: path}
	}
	return parent, nil
}

// chat performs one completion over the given history and reduces the
// assistant turn to text. A tool call is dispatched through the registry
// and its JSON output becomes the assistant text.
func (a *ModelAgent) chat(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	cacheKey := taskhash.Sum32Hex(prompt)
	if a.cache != nil && len(history) == 0 {
		if cached, ok := a.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	req := llm.CompletionRequest{
		Prompt:       llm.UserMessage(prompt),
		SystemPrompt: a.systemPrompt,
		ChatHistory:  history,
		Tools:        a.tools.Definitions(),
		Temperature:  a.config.Temperature,
		MaxTokens:    a.config.MaxTokens,
	}

	response, err := a.provider.Completion(ctx, req)
	if err != nil {
		return "", &CompletionError{Err: err}
	}
	if len(response.Choice) == 0 {
		return "", ErrNoChoiceFound
	}

	choice := response.Choice[0]
	if !choice.IsToolCall() {
		if a.cache != nil && len(history) == 0 {
			a.cache.Put(cacheKey, choice.Text)
		}
		return choice.Text, nil
	}

	call := choice.ToolCall
	output, found, err := a.tools.Call(ctx, call.Name, call.Arguments)
	if !found {
		return "", &ToolNotFoundError{Name: call.Name}
	}
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// historyMessages renders the task conversation as provider messages,
// "name: content" per turn.
func (a *ModelAgent) historyMessages(task string) []llm.Message {
	conv, ok := a.shortMemory.Get(task)
	if !ok {
		return nil
	}

	history := conv.History()
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		text := fmt.Sprintf("%s: %s", m.Role.Name, m.Content)
		if m.Role.Kind == conversation.Assistant {
			messages = append(messages, llm.AssistantMessage(text))
		} else {
			messages = append(messages, llm.UserMessage(text))
		}
	}
	return messages
}

func (a *ModelAgent) handleErrorInAttempts(ctx context.Context, task string, err error, attempt int) {
	a.logger.Error("attempt failed", "agent", a.config.Name, "task", task, "attempt", attempt, "error", err)

	if a.config.Autosave {
		if serr := a.SaveTaskState(ctx, task); serr != nil {
			a.logger.Error("failed to save task state", "agent", a.config.Name, "task", task, "error", serr)
		}
	}
}

// isFatalRunError reports whether err aborts the run instead of being
// retried. Provider failures are retried; tool failures and unknown tools
// are not.
func isFatalRunError(err error) bool {
	var notFound *ToolNotFoundError
	var toolErr *tool.Error
	return errors.As(err, &notFound) || errors.As(err, &toolErr)
}
