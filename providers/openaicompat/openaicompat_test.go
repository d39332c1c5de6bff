// Copyright 2026 © The Pulser Authors
// SPDX-License-Identifier: Apache-2.0

package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/llm"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ llm.Provider = (*Provider)(nil)
}

func TestGenerateSendsSystemMessageFirst(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer srv.Close()

	p := New("openai", srv.URL, WithModel("gpt-4"))
	comp, err := p.Generate(context.Background(), llm.Request{
		Prompt:      "hello",
		System:      "You are claudia",
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if comp.Content != "hi" {
		t.Errorf("content = %q", comp.Content)
	}

	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "You are claudia" {
		t.Errorf("first message = %+v, want system", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "hello" {
		t.Errorf("second message = %+v, want user", got.Messages[1])
	}
	if got.Model != "gpt-4" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0.7 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.MaxTokens != nil {
		t.Errorf("max_tokens sent when unset: %v", got.MaxTokens)
	}
}

func TestGenerateOmitsSystemWhenEmpty(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := New("local", srv.URL, WithModel("local-model"))
	if _, err := p.Generate(context.Background(), llm.Request{Prompt: "hello"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestGenerateBearerAuthOnlyWhenKeySet(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := New("local", srv.URL)
	p.Generate(context.Background(), llm.Request{Prompt: "x", Model: "m"})
	if auth != "" {
		t.Errorf("unauthenticated backend got Authorization %q", auth)
	}

	p = New("mistral", srv.URL, WithAPIKey("sk-test"))
	p.Generate(context.Background(), llm.Request{Prompt: "x", Model: "m"})
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestGenerateMissingKeyIsConfigError(t *testing.T) {
	p := New("openai", "http://unused.invalid", WithAPIKey(""))

	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*errors.PulserError)
	if !ok || pe.Code != errors.CodeConfig {
		t.Errorf("err = %v, want config error", err)
	}
}

func TestGenerateNon200CarriesRawBody(t *testing.T) {
	body := `{"error": {"message": "model overloaded"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := New("openai", srv.URL, WithModel("gpt-4"))
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*errors.PulserError)
	if !ok {
		t.Fatalf("err type %T", err)
	}
	if pe.Message != body {
		t.Errorf("error message = %q, want raw body", pe.Message)
	}
	if !pe.Recoverable {
		t.Error("5xx should be recoverable")
	}
}

func TestGenerate4xxNotRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer srv.Close()

	p := New("openai", srv.URL, WithModel("gpt-4"))
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	pe, ok := err.(*errors.PulserError)
	if !ok || pe.Recoverable {
		t.Errorf("4xx should not be recoverable: %v", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := New("local", srv.URL, WithModel("m"))
	comp, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if comp.Content != "" {
		t.Errorf("content = %q, want empty", comp.Content)
	}
}

func TestNewFromConfigReadsCredentialEnv(t *testing.T) {
	t.Setenv("TEST_COMPAT_KEY", "sk-from-env")

	p := NewFromConfig(llm.ProviderConfig{
		Key:          "openai",
		DefaultModel: "gpt-4",
		Endpoint:     "https://api.openai.com/v1/chat/completions",
		APIKeyEnv:    "TEST_COMPAT_KEY",
	})
	if p.apiKey != "sk-from-env" {
		t.Errorf("apiKey = %q", p.apiKey)
	}
	if !p.requireKey {
		t.Error("credentialed config should require a key")
	}
	if p.model != "gpt-4" {
		t.Errorf("model = %q", p.model)
	}
}
