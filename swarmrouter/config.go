package swarmrouter

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vsumner/swarms-go/agent"
)

// Config describes a swarm: which engine to build, over which agents, with
// which shared prompts. Agents and Logger are runtime-only and never
// serialized.
type Config struct {
	// Name identifies the router instance.
	Name string `yaml:"name"`

	// Description states the router's purpose.
	Description string `yaml:"description"`

	// SwarmType selects the workflow engine.
	SwarmType SwarmType `yaml:"swarm_type"`

	// Rules, when set, are appended to every agent's system prompt.
	Rules string `yaml:"rules,omitempty"`

	// MultiAgentCollabPrompt prepends the collaboration prompt to every
	// agent's system prompt.
	MultiAgentCollabPrompt bool `yaml:"multi_agent_collab_prompt"`

	// Flow is the rearrange flow pattern. Used only by SwarmRearrange.
	Flow string `yaml:"flow,omitempty"`

	// MaxLoops bounds rearrange execution loops. Used only by
	// SwarmRearrange.
	MaxLoops int `yaml:"max_loops,omitempty"`

	// MetadataOutputDir is where run metadata files are written.
	MetadataOutputDir string `yaml:"metadata_output_dir,omitempty"`

	// Agents are the swarm members.
	Agents []*agent.ModelAgent `yaml:"-"`

	// Logger is passed through to the built workflow.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a config with the standard defaults; agents must
// still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Name:                   "swarm-router",
		Description:            "Routes your task to the desired swarm",
		SwarmType:              SwarmSequential,
		MultiAgentCollabPrompt: true,
	}
}

// LoadConfig loads a router configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfigYAML(data)
}

// ParseConfigYAML parses a router configuration from YAML data, applying
// defaults after unmarshal.
func ParseConfigYAML(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Name == "" {
		config.Name = "swarm-router"
	}
	if config.SwarmType == "" {
		config.SwarmType = SwarmSequential
	}
	if config.SwarmType == SwarmRearrange && config.MaxLoops < 1 {
		config.MaxLoops = 1
	}

	switch config.SwarmType {
	case SwarmSequential, SwarmConcurrent, SwarmRearrange:
	default:
		return nil, fmt.Errorf("unknown swarm_type %q", config.SwarmType)
	}

	return &config, nil
}

// SaveConfig saves a router configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
