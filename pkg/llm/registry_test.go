package llm

import "testing"

func TestDefaultRegistryProviders(t *testing.T) {
	r := DefaultRegistry()

	for _, key := range []string{ProviderClaude, ProviderOpenAI, ProviderMistral, ProviderDeepSeekR1, ProviderLocal} {
		cfg, ok := r.Lookup(key)
		if !ok {
			t.Errorf("provider %q missing", key)
			continue
		}
		if cfg.DefaultModel == "" {
			t.Errorf("provider %q has no default model", key)
		}
		if cfg.Endpoint == "" {
			t.Errorf("provider %q has no endpoint", key)
		}
	}

	if _, ok := r.Lookup("grok"); ok {
		t.Error("unexpected provider grok")
	}
}

func TestDefaultRegistryCredentialKeys(t *testing.T) {
	r := DefaultRegistry()

	cases := map[string]string{
		ProviderClaude:  "CLAUDE_API_KEY",
		ProviderOpenAI:  "OPENAI_API_KEY",
		ProviderMistral: "MISTRAL_API_KEY",
	}
	for key, env := range cases {
		cfg, _ := r.Lookup(key)
		if cfg.APIKeyEnv != env {
			t.Errorf("%s credential env = %q, want %q", key, cfg.APIKeyEnv, env)
		}
	}

	// Unauthenticated backends carry no credential key.
	for _, key := range []string{ProviderDeepSeekR1, ProviderLocal} {
		cfg, _ := r.Lookup(key)
		if cfg.APIKeyEnv != "" {
			t.Errorf("%s unexpectedly requires credential env %q", key, cfg.APIKeyEnv)
		}
	}
}

func TestDefaultRegistryEnvOverrides(t *testing.T) {
	t.Setenv("CLAUDE_MODEL", "claude-3-opus-20240229")
	t.Setenv("LOCAL_LLM_ENDPOINT", "http://127.0.0.1:9999/v1/chat/completions")

	r := DefaultRegistry()

	claude, _ := r.Lookup(ProviderClaude)
	if claude.DefaultModel != "claude-3-opus-20240229" {
		t.Errorf("claude model = %q", claude.DefaultModel)
	}
	local, _ := r.Lookup(ProviderLocal)
	if local.Endpoint != "http://127.0.0.1:9999/v1/chat/completions" {
		t.Errorf("local endpoint = %q", local.Endpoint)
	}
}
