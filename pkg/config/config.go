// Package config loads Pulser router configuration from defaults, an optional
// YAML file, PULSER_-prefixed environment variables, and CLI overrides, in
// that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Context   ContextConfig   `koanf:"context"`
	Agents    AgentsConfig    `koanf:"agents"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Runner    RunnerConfig    `koanf:"runner"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
	File   string `koanf:"file"`   // appended to in addition to stderr; empty disables
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // claude, openai, mistral, deepseekr1, local
	Model    string `koanf:"model"`    // overrides the selected provider's default model
	Timeout  int    `koanf:"timeout"`  // seconds, applied uniformly to every transport
	Attempts int    `koanf:"attempts"` // attempts per transport tier
	Script   string `koanf:"script"`   // claude CLI context script path
}

type ContextConfig struct {
	Backend   string `koanf:"backend"`   // file, sqlite, inmemory
	Dir       string `koanf:"dir"`       // file backend directory; empty means ~/.pulser/context
	Database  string `koanf:"database"`  // sqlite backend path; empty means ~/.pulser/context.db
	Retention int    `koanf:"retention"` // max records kept; 0 means unbounded
}

type AgentsConfig struct {
	Manifest string `koanf:"manifest"` // YAML agent manifest; empty uses the built-in table
}

type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Exporter string `koanf:"exporter"` // stdout, otlp
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

type RunnerConfig struct {
	Pulser string `koanf:"pulser"` // orchestration CLI used for tasks and last-resort generation
	Shogun string `koanf:"shogun"` // UI-automation runner binary
}

// Load reads configuration from an optional YAML file and the environment.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides reads configuration and then applies key=value overrides
// from the CLI (--set), which take the highest precedence.
func LoadWithOverrides(path string, sets []string) (*Config, error) {
	k := koanf.New(".")

	// Defaults mirror the legacy router's hardcoded behavior.
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "claude")
	k.Set("llm.timeout", 30)
	k.Set("llm.attempts", 1)
	k.Set("context.backend", "file")
	k.Set("context.retention", 1000)
	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")
	k.Set("runner.pulser", "pulser")
	k.Set("runner.shogun", "shogun-runner")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (PULSER_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("PULSER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PULSER_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// 3. CLI overrides
	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", set)
		}
		k.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
