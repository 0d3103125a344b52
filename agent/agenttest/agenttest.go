// Package agenttest provides deterministic Agent test doubles for workflow
// tests.
package agenttest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vsumner/swarms-go/agent"
)

// Mock is a canned-response Agent. It records every task it was run with
// so tests can assert on the exact inputs a workflow delivered.
type Mock struct {
	AgentID     string
	AgentName   string
	Desc        string
	Response    string
	Err         error
	Delay       time.Duration
	StopWordSet []string

	// Transform, when set, derives the response from the task instead of
	// returning Response.
	Transform func(task string) string

	mu     sync.Mutex
	inputs []string
}

// NewMock builds a mock agent returning response for every task.
func NewMock(id, name, description, response string) *Mock {
	return &Mock{AgentID: id, AgentName: name, Desc: description, Response: response}
}

// ID implements agent.Agent.
func (m *Mock) ID() string { return m.AgentID }

// Name implements agent.Agent.
func (m *Mock) Name() string { return m.AgentName }

// Description implements agent.Agent.
func (m *Mock) Description() string { return m.Desc }

// Run implements agent.Agent.
func (m *Mock) Run(ctx context.Context, task string) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, task)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	if m.Err != nil {
		return "", m.Err
	}
	if m.Transform != nil {
		return m.Transform(task), nil
	}
	return m.Response, nil
}

// RunMultipleTasks implements agent.Agent.
func (m *Mock) RunMultipleTasks(ctx context.Context, tasks []string) ([]string, error) {
	results := make([]string, 0, len(tasks))
	for _, task := range tasks {
		result, err := m.Run(ctx, task)
		if err != nil {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// IsResponseComplete implements agent.Agent.
func (m *Mock) IsResponseComplete(response string) bool {
	for _, word := range m.StopWordSet {
		if strings.Contains(response, word) {
			return true
		}
	}
	return false
}

// CloneBox implements agent.Agent. The clone shares the input recorder so
// tests observe runs made through parallel stages.
func (m *Mock) CloneBox() agent.Agent {
	return m
}

// Inputs returns a copy of every task this mock has been run with, in
// call order.
func (m *Mock) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}
