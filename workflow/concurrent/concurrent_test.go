package concurrent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/agent/agenttest"
	"github.com/vsumner/swarms-go/conversation"
)

func threeAgents() []agent.Agent {
	return []agent.Agent{
		agenttest.NewMock("1", "agent1", "agent1 description", "response1"),
		agenttest.NewMock("2", "agent2", "agent2 description", "response2"),
		agenttest.NewMock("3", "agent3", "agent3 description", "response3"),
	}
}

func TestRunValidation(t *testing.T) {
	w := NewBuilder().Name("empty").Build()
	if _, err := w.Run(context.Background(), "task"); !errors.Is(err, ErrEmptyTasksOrAgents) {
		t.Fatalf("err=%v, want ErrEmptyTasksOrAgents", err)
	}

	w = NewBuilder().Agents(threeAgents()).Build()
	if _, err := w.Run(context.Background(), ""); !errors.Is(err, ErrEmptyTasksOrAgents) {
		t.Fatalf("err=%v, want ErrEmptyTasksOrAgents for empty task", err)
	}
}

func TestRunFansOut(t *testing.T) {
	w := NewBuilder().
		Name("fan").
		Agents(threeAgents()).
		MetadataOutputDir(t.TempDir()).
		Build()

	conv, err := w.Run(context.Background(), "test task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	history := conv.History()
	if len(history) != 4 {
		t.Fatalf("history=%d, want user turn + 3 agents", len(history))
	}
	if history[0].Role != conversation.UserRole("User") || !strings.Contains(history[0].Content, "test task") {
		t.Fatalf("first message=%+v", history[0])
	}

	// Every assistant message carries its producing agent's name, and the
	// set of tags equals the agents that succeeded. Arrival order is not
	// asserted.
	seen := make(map[string]string)
	for _, msg := range history[1:] {
		if msg.Role.Kind != conversation.Assistant {
			t.Fatalf("message %+v should be an assistant turn", msg)
		}
		seen[msg.Role.Name] = msg.Content
	}
	for name, response := range map[string]string{"agent1": "response1", "agent2": "response2", "agent3": "response3"} {
		content, ok := seen[name]
		if !ok || !strings.Contains(content, response) {
			t.Fatalf("missing or wrong output for %s: %q", name, content)
		}
	}
}

func TestRunRejectsDuplicateTask(t *testing.T) {
	w := NewBuilder().Agents(threeAgents()).MetadataOutputDir(t.TempDir()).Build()

	if _, err := w.Run(context.Background(), "once"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := w.Run(context.Background(), "once"); !errors.Is(err, ErrTaskAlreadyExists) {
		t.Fatalf("err=%v, want ErrTaskAlreadyExists", err)
	}
}

func TestRunOmitsFailedAgents(t *testing.T) {
	failing := agenttest.NewMock("2", "agent2", "", "")
	failing.Err = errors.New("boom")
	agents := []agent.Agent{
		agenttest.NewMock("1", "agent1", "", "response1"),
		failing,
	}

	w := NewBuilder().Agents(agents).MetadataOutputDir(t.TempDir()).Build()
	conv, err := w.Run(context.Background(), "t")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if conv.Len() != 2 {
		t.Fatalf("history=%d, want user turn + 1 surviving agent", conv.Len())
	}
}

func TestRunBatch(t *testing.T) {
	w := NewBuilder().Agents(threeAgents()).MetadataOutputDir(t.TempDir()).Build()

	results, err := w.RunBatch(context.Background(), []string{"t1", "t2", "t3"})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results=%d, want 3 tasks", len(results))
	}

	for task, conv := range results {
		history := conv.History()
		if len(history) != 4 {
			t.Fatalf("task %s history=%d, want 4", task, len(history))
		}
		for _, response := range []string{"response1", "response2", "response3"} {
			found := false
			for _, msg := range history[1:] {
				if strings.Contains(msg.Content, response) {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("task %s missing %s", task, response)
			}
		}
	}
}

func TestRunBatchValidation(t *testing.T) {
	w := NewBuilder().Agents(threeAgents()).Build()
	if _, err := w.RunBatch(context.Background(), nil); !errors.Is(err, ErrEmptyTasksOrAgents) {
		t.Fatalf("err=%v, want ErrEmptyTasksOrAgents", err)
	}
}
