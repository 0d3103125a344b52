// Package workflow holds the record types and helpers shared by the
// composition engines: per-agent run records and the swarm metadata file
// written after a successful run.
package workflow

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vsumner/swarms-go/agent"
	"github.com/vsumner/swarms-go/internal/taskhash"
	"github.com/vsumner/swarms-go/persistence"
)

// AgentOutput is the record of one agent run inside a swarm.
type AgentOutput struct {
	RunID      string    `json:"run_id"`
	AgentName  string    `json:"agent_name"`
	Task       string    `json:"task"`
	Output     string    `json:"output"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMS int64     `json:"duration_ms"`
}

// Metadata is the per-swarm run summary persisted after all agents finish.
type Metadata struct {
	SwarmID      string        `json:"swarm_id"`
	Task         string        `json:"task"`
	Description  string        `json:"description"`
	AgentsOutput []AgentOutput `json:"agents_output"`
	Timestamp    time.Time     `json:"timestamp"`
}

// RunAgentWithOutput runs a on task and wraps the result in a timed record.
func RunAgentWithOutput(ctx context.Context, a agent.Agent, task string) (AgentOutput, error) {
	start := time.Now()
	output, err := a.Run(ctx, task)
	end := time.Now()
	if err != nil {
		return AgentOutput{}, err
	}

	return AgentOutput{
		RunID:      uuid.NewString(),
		AgentName:  a.Name(),
		Task:       task,
		Output:     output,
		Start:      start,
		End:        end,
		DurationMS: end.Sub(start).Milliseconds(),
	}, nil
}

// WriteMetadata persists meta as <dir>/<task_hash>.json. A blank dir skips
// the write.
func WriteMetadata(ctx context.Context, dir string, meta Metadata) error {
	if dir == "" {
		return nil
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, taskhash.Sum32Hex(meta.Task)+".json")
	return persistence.SaveToFile(ctx, data, path)
}
