package swarmrouter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/llm"
)

// echoProvider answers with a fixed text and records the system prompts it
// was called with.
type echoProvider struct {
	text string

	mu      sync.Mutex
	systems []string
}

func (p *echoProvider) Completion(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.systems = append(p.systems, req.SystemPrompt)
	p.mu.Unlock()
	return &llm.CompletionResponse{Choice: []llm.AssistantContent{llm.TextContent(p.text)}}, nil
}

func (p *echoProvider) seenSystems() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.systems))
	copy(out, p.systems)
	return out
}

func buildAgents(p llm.Provider, names ...string) []*agent.ModelAgent {
	agents := make([]*agent.ModelAgent, 0, len(names))
	for _, name := range names {
		agents = append(agents, agent.NewBuilder(p).
			AgentName(name).
			SystemPrompt("base prompt for "+name).
			Build())
	}
	return agents
}

func TestNewRejectsEmptyAgents(t *testing.T) {
	config := DefaultConfig()
	_, err := New(config)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err=%v, want ValidationError", err)
	}
}

func TestNewRejectsUnknownSwarmType(t *testing.T) {
	provider := &echoProvider{text: "r"}
	config := DefaultConfig()
	config.SwarmType = "mystery"
	config.Agents = buildAgents(provider, "a1")
	if _, err := New(config); err == nil {
		t.Fatalf("expected error for unknown swarm type")
	}
}

func TestSequentialRunAndPromptInjection(t *testing.T) {
	provider := &echoProvider{text: "resp"}
	config := DefaultConfig()
	config.SwarmType = SwarmSequential
	config.MetadataOutputDir = t.TempDir()
	config.Rules = "always cite sources"
	config.MultiAgentCollabPrompt = true
	config.Agents = buildAgents(provider, "a1", "a2")

	router, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conv, err := router.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if conv.Len() != 3 {
		t.Fatalf("history=%d, want user turn + 2 agents", conv.Len())
	}

	for _, system := range provider.seenSystems() {
		if !strings.HasPrefix(system, MultiAgentCollabPrompt) {
			t.Fatalf("system prompt missing collab prefix: %q", system)
		}
		if !strings.Contains(system, "### SWARM RULES ###\nalways cite sources") {
			t.Fatalf("system prompt missing rules suffix: %q", system)
		}
		if !strings.Contains(system, "base prompt for") {
			t.Fatalf("original system prompt lost: %q", system)
		}
	}
}

func TestInjectionLeavesOriginalAgentsUntouched(t *testing.T) {
	provider := &echoProvider{text: "r"}
	agents := buildAgents(provider, "a1")

	config := DefaultConfig()
	config.Rules = "rule"
	config.Agents = agents
	if _, err := New(config); err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := agents[0].SystemPrompt(); got != "base prompt for a1" {
		t.Fatalf("original agent mutated: %q", got)
	}
}

func TestConcurrentDispatch(t *testing.T) {
	provider := &echoProvider{text: "resp"}
	config := DefaultConfig()
	config.SwarmType = SwarmConcurrent
	config.MetadataOutputDir = t.TempDir()
	config.Agents = buildAgents(provider, "a1", "a2", "a3")

	router, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conv, err := router.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if conv.Len() != 4 {
		t.Fatalf("history=%d, want user turn + 3 agents", conv.Len())
	}
}

func TestRearrangeDispatchReturnsConversation(t *testing.T) {
	provider := &echoProvider{text: "resp"}
	config := DefaultConfig()
	config.SwarmType = SwarmRearrange
	config.Flow = "a1 -> a2"
	config.MaxLoops = 1
	config.Agents = buildAgents(provider, "a1", "a2")

	router, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conv, err := router.Run(context.Background(), "task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if conv == nil || conv.Len() < 3 {
		t.Fatalf("conversation=%v, want task + both agents recorded", conv)
	}
	count := conv.CountMessagesByRole()
	if count["a1(Assistant)"] != 1 || count["a2(Assistant)"] != 1 {
		t.Fatalf("counts=%v", count)
	}
}

func TestBatchRunSequential(t *testing.T) {
	provider := &echoProvider{text: "resp"}
	config := DefaultConfig()
	config.SwarmType = SwarmSequential
	config.MetadataOutputDir = t.TempDir()
	config.Agents = buildAgents(provider, "a1")

	router, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := router.BatchRun(context.Background(), []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("BatchRun: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d, want 2", len(results))
	}
	for task, conv := range results {
		if conv.Len() != 2 {
			t.Fatalf("task %s history=%d, want 2", task, conv.Len())
		}
	}
}
