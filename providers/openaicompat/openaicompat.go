// Copyright 2026 © The Pulser Authors
// SPDX-License-Identifier: Apache-2.0

// Package openaicompat provides a transport for every backend speaking the
// OpenAI chat-completions wire format: OpenAI itself, Mistral, DeepSeek R1
// servers, and local model servers such as Ollama.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/llm"
)

// Provider implements llm.Provider over the OpenAI-compatible HTTP API.
type Provider struct {
	name     string
	endpoint string
	apiKey   string
	// requireKey marks hosted backends that refuse unauthenticated requests.
	requireKey bool
	model      string
	client     *http.Client
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithAPIKey sets the bearer credential and marks it required.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.apiKey = apiKey
		p.requireKey = true
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a provider for the given chat-completions endpoint.
func New(name, endpoint string, opts ...Option) *Provider {
	p := &Provider{
		name:     name,
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider from a registry entry. When the entry
// names a credential environment variable, the key is read from it and the
// transport fails requests if it is unset.
func NewFromConfig(cfg llm.ProviderConfig, opts ...Option) *Provider {
	p := New(cfg.Key, cfg.Endpoint, WithModel(cfg.DefaultModel))
	if cfg.APIKeyEnv != "" {
		p.apiKey = os.Getenv(cfg.APIKeyEnv)
		p.requireKey = true
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	if p.requireKey && p.apiKey == "" {
		return nil, errors.New(errors.CodeConfig,
			fmt.Sprintf("%s API key not found", p.name), nil)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	apiReq := chatRequest{Model: model}
	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "system", Content: req.System})
	}
	apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.Temperature > 0 {
		apiReq.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = &req.MaxTokens
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeTransport,
			fmt.Sprintf("%s request failed: %v", p.name, err), err).
			WithRecoverable(true)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeTransport, "read response", err).
			WithRecoverable(true)
	}

	// A non-2xx status surfaces the raw body so callers see the backend's
	// own diagnostic.
	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeTransport, string(respBody), nil).
			WithContext("status", httpResp.StatusCode).
			WithContext("provider", p.name).
			WithRecoverable(httpResp.StatusCode >= 500)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, errors.New(errors.CodeTransport, "parse response", err)
	}

	comp := &llm.Completion{Model: model}
	if len(apiResp.Choices) > 0 {
		comp.Content = apiResp.Choices[0].Message.Content
	}
	return comp, nil
}

// Wire types for the OpenAI-compatible chat completions API.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Ensure Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)
