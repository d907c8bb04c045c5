package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	AgentRandom = "random"
	AgentLLM    = "llm"

	RuntimeBridge   = "bridge"
	RuntimeEmbedded = "embedded"
)

type RolloutConfig struct {
	Env      string        `yaml:"env"`
	Episodes int           `yaml:"episodes"`
	MaxSteps int           `yaml:"max_steps"`
	Seed     uint64        `yaml:"seed"`
	Agent    AgentConfig   `yaml:"agent"`
	Runtime  RuntimeConfig `yaml:"runtime"`
	Logging  LogConfig     `yaml:"logging"`
}

type AgentConfig struct {
	Type     string         `yaml:"type"`
	Provider string         `yaml:"provider"`
	Model    string         `yaml:"model"`
	Task     string         `yaml:"task"`
	History  int            `yaml:"history"`
	Config   map[string]any `yaml:"config"`
}

type RuntimeConfig struct {
	Type   string `yaml:"type"`
	Python string `yaml:"python"`
}

type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	Path    string `yaml:"path"`
}

func DefaultConfig() RolloutConfig {
	return RolloutConfig{
		Env:      "CartPole-v1",
		Episodes: 1,
		MaxSteps: 500,
		Agent: AgentConfig{
			Type:     AgentRandom,
			Provider: "openai",
			Model:    "gpt-4o-mini",
			History:  5,
		},
		Runtime: RuntimeConfig{
			Type: RuntimeBridge,
		},
	}
}

// LoadConfig reads a rollout configuration from a YAML file. Fields the
// file leaves out keep their defaults.
func LoadConfig(path string) (*RolloutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*RolloutConfig, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *RolloutConfig) Validate() error {
	var errs []error
	if c.Env == "" {
		errs = append(errs, errors.New("env must be set"))
	}
	if c.Episodes < 1 {
		errs = append(errs, fmt.Errorf("episodes must be positive, got %d", c.Episodes))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps))
	}
	switch c.Agent.Type {
	case AgentRandom, AgentLLM:
	default:
		errs = append(errs, fmt.Errorf("unknown agent type %q", c.Agent.Type))
	}
	if c.Agent.History < 0 {
		errs = append(errs, fmt.Errorf("agent history must not be negative, got %d", c.Agent.History))
	}
	switch c.Runtime.Type {
	case RuntimeBridge, RuntimeEmbedded:
	default:
		errs = append(errs, fmt.Errorf("unknown runtime %q", c.Runtime.Type))
	}
	return errors.Join(errs...)
}
