package sequential

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/agent/agenttest"
	"github.com/vsumner/swarms-go/internal/taskhash"
	"github.com/vsumner/swarms-go/workflow"
)

func TestRunValidation(t *testing.T) {
	w := NewBuilder().Name("empty").MetadataOutputDir("").Build()
	if _, err := w.Run(context.Background(), "task"); !errors.Is(err, ErrNoAgents) {
		t.Fatalf("err=%v, want ErrNoAgents", err)
	}

	w = NewBuilder().
		AddAgent(agenttest.NewMock("1", "a1", "", "r1")).
		MetadataOutputDir("").
		Build()
	if _, err := w.Run(context.Background(), ""); !errors.Is(err, ErrNoTasks) {
		t.Fatalf("err=%v, want ErrNoTasks", err)
	}
}

func TestRunChainsAgents(t *testing.T) {
	a1 := agenttest.NewMock("1", "a1", "", "r1")
	a2 := agenttest.NewMock("2", "a2", "", "r2")
	a3 := agenttest.NewMock("3", "a3", "", "r3")

	w := NewBuilder().
		Name("chain").
		Agents([]agent.Agent{a1, a2, a3}).
		MetadataOutputDir(t.TempDir()).
		Build()

	conv, err := w.Run(context.Background(), "t")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	history := conv.History()
	if len(history) != 4 {
		t.Fatalf("history=%d messages, want user turn + 3 agents", len(history))
	}
	if !strings.Contains(history[0].Content, "t") || !strings.HasPrefix(history[0].Content, "Time: ") {
		t.Fatalf("first message=%+v, want timestamped task", history[0])
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		msg := history[i+1]
		if !strings.Contains(msg.Content, want) {
			t.Fatalf("message %d=%+v, want %s", i+1, msg, want)
		}
		if !strings.HasPrefix(msg.Content, "Time: ") {
			t.Fatalf("message %d missing timestamp marker", i+1)
		}
	}

	// Each downstream agent sees exactly the handoff format.
	if got := a1.Inputs()[0]; got != "t" {
		t.Fatalf("a1 input=%q, want the raw task", got)
	}
	if got := a2.Inputs()[0]; got != "[From Agent] a1:\nr1" {
		t.Fatalf("a2 input=%q", got)
	}
	if got := a3.Inputs()[0]; got != "[From Agent] a2:\nr2" {
		t.Fatalf("a3 input=%q", got)
	}
}

func TestRunWritesMetadata(t *testing.T) {
	dir := t.TempDir()
	w := NewBuilder().
		Name("meta").
		Description("desc").
		AddAgent(agenttest.NewMock("1", "a1", "", "r1")).
		MetadataOutputDir(dir).
		Build()

	if _, err := w.Run(context.Background(), "the task"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	path := filepath.Join(dir, taskhash.Sum32Hex("the task")+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metadata not written: %v", err)
	}

	var meta workflow.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if meta.Task != "the task" || meta.SwarmID == "" || len(meta.AgentsOutput) != 1 {
		t.Fatalf("meta=%+v", meta)
	}
	if meta.AgentsOutput[0].AgentName != "a1" || meta.AgentsOutput[0].Output != "r1" {
		t.Fatalf("agent output=%+v", meta.AgentsOutput[0])
	}
}

func TestRunStopsOnAgentError(t *testing.T) {
	failing := agenttest.NewMock("2", "a2", "", "")
	failing.Err = errors.New("boom")
	a3 := agenttest.NewMock("3", "a3", "", "r3")

	w := NewBuilder().
		Agents([]agent.Agent{agenttest.NewMock("1", "a1", "", "r1"), failing, a3}).
		MetadataOutputDir(t.TempDir()).
		Build()

	if _, err := w.Run(context.Background(), "t"); err == nil {
		t.Fatalf("expected error from failing agent")
	}
	if len(a3.Inputs()) != 0 {
		t.Fatalf("a3 ran after upstream failure")
	}
}
