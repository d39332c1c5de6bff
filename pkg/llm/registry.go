package llm

import "os"

// Provider keys supported out of the box.
const (
	ProviderClaude     = "claude"
	ProviderOpenAI     = "openai"
	ProviderMistral    = "mistral"
	ProviderDeepSeekR1 = "deepseekr1"
	ProviderLocal      = "local"
)

// DefaultProvider is used when neither the request nor the configuration
// names one.
const DefaultProvider = ProviderClaude

// ProviderConfig describes one backend: its default model, endpoint, and the
// environment variable its credential is read from. Immutable after load.
type ProviderConfig struct {
	Key          string
	DefaultModel string
	Endpoint     string
	APIKeyEnv    string
}

// Registry maps provider keys to their configuration. It is read-only after
// construction.
type Registry struct {
	configs map[string]ProviderConfig
}

// NewRegistry builds a registry from the given configs, keyed by config key.
func NewRegistry(configs ...ProviderConfig) *Registry {
	r := &Registry{configs: make(map[string]ProviderConfig, len(configs))}
	for _, c := range configs {
		r.configs[c.Key] = c
	}
	return r
}

// Lookup returns the configuration for a provider key.
func (r *Registry) Lookup(key string) (ProviderConfig, bool) {
	c, ok := r.configs[key]
	return c, ok
}

// Keys returns the registered provider keys in unspecified order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.configs))
	for k := range r.configs {
		keys = append(keys, k)
	}
	return keys
}

// DefaultRegistry returns the built-in provider table. Model and endpoint
// defaults honor the legacy environment overrides (CLAUDE_MODEL,
// OPENAI_MODEL, DEEPSEEKR1_API_URL, LOCAL_LLM_ENDPOINT).
func DefaultRegistry() *Registry {
	return NewRegistry(
		ProviderConfig{
			Key:          ProviderClaude,
			DefaultModel: envOr("CLAUDE_MODEL", "claude-3-sonnet-20240229"),
			Endpoint:     "https://api.anthropic.com/v1/messages",
			APIKeyEnv:    "CLAUDE_API_KEY",
		},
		ProviderConfig{
			Key:          ProviderOpenAI,
			DefaultModel: envOr("OPENAI_MODEL", "gpt-4"),
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			APIKeyEnv:    "OPENAI_API_KEY",
		},
		ProviderConfig{
			Key:          ProviderMistral,
			DefaultModel: "mistral-7b-v0.1",
			Endpoint:     "https://api.mistral.ai/v1/chat/completions",
			APIKeyEnv:    "MISTRAL_API_KEY",
		},
		ProviderConfig{
			Key:          ProviderDeepSeekR1,
			DefaultModel: "deepseek-coder-v1.5",
			Endpoint:     envOr("DEEPSEEKR1_API_URL", "http://localhost:8080/v1/chat/completions"),
		},
		ProviderConfig{
			Key:          ProviderLocal,
			DefaultModel: "local-model",
			Endpoint:     envOr("LOCAL_LLM_ENDPOINT", "http://localhost:11434/v1/chat/completions"),
		},
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
