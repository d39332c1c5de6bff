// Copyright 2026 © The Pulser Authors
// SPDX-License-Identifier: Apache-2.0

// Package claude provides the Anthropic Claude transport for Pulser. When the
// claude CLI and its context script are installed the transport pipes prompts
// through them; otherwise it calls the Messages HTTP API directly.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/llm"
)

const (
	// DefaultEndpoint is the Anthropic Messages API endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"

	// APIVersion is the anthropic-version header value.
	APIVersion = "2023-06-01"
)

// Provider implements llm.Provider for Anthropic Claude.
type Provider struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client

	// cliBinary and script enable the CLI transport. The CLI is preferred
	// whenever both exist; script empty disables it.
	cliBinary string
	script    string

	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	run      func(ctx context.Context, stdin, name string, args ...string) (stdout, stderr []byte, err error)
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithEndpoint sets a custom Messages API endpoint.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// WithAPIKey sets the API key for the HTTP transport.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.apiKey = apiKey
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithContextScript sets the context script piped through the claude CLI.
func WithContextScript(path string) Option {
	return func(p *Provider) {
		p.script = path
	}
}

// WithCLIBinary sets the CLI binary name or path.
func WithCLIBinary(binary string) Option {
	return func(p *Provider) {
		p.cliBinary = binary
	}
}

// New creates a Claude provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		endpoint:  DefaultEndpoint,
		model:     "claude-3-sonnet-20240229",
		client:    http.DefaultClient,
		cliBinary: "claude",
		lookPath:  exec.LookPath,
		stat:      os.Stat,
		run:       runWithStdin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider from a registry entry, reading the API key
// from the entry's credential environment variable.
func NewFromConfig(cfg llm.ProviderConfig, opts ...Option) *Provider {
	base := []Option{WithModel(cfg.DefaultModel)}
	if cfg.Endpoint != "" {
		base = append(base, WithEndpoint(cfg.Endpoint))
	}
	if cfg.APIKeyEnv != "" {
		base = append(base, WithAPIKey(os.Getenv(cfg.APIKeyEnv)))
	}
	return New(append(base, opts...)...)
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	if p.cliAvailable() {
		return p.generateCLI(ctx, req)
	}
	return p.generateHTTP(ctx, req)
}

// cliAvailable reports whether both the CLI binary and the context script exist.
func (p *Provider) cliAvailable() bool {
	if p.script == "" {
		return false
	}
	if _, err := p.lookPath(p.cliBinary); err != nil {
		return false
	}
	_, err := p.stat(p.script)
	return err == nil
}

// generateCLI pipes the system instruction and prompt, blank-line separated,
// into the context script's standard input. Stdout is the content, unmodified.
func (p *Provider) generateCLI(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	input := req.Prompt
	if req.System != "" {
		input = req.System + "\n\n" + req.Prompt
	}

	stdout, stderr, err := p.run(ctx, input, "bash", p.script)
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		return nil, errors.New(errors.CodeTransport, detail, err).
			WithContext("transport", "cli").
			WithRecoverable(true)
	}

	return &llm.Completion{Content: string(stdout), Model: model}, nil
}

// generateHTTP calls the Messages API directly.
func (p *Provider) generateHTTP(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	if p.apiKey == "" {
		return nil, errors.New(errors.CodeConfig, "Claude API key not found", nil)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	apiReq := messagesRequest{Model: model}
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
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)
	httpReq.Header.Set("content-type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeTransport, "claude request failed: "+err.Error(), err).
			WithRecoverable(true)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeTransport, "read response", err).
			WithRecoverable(true)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeTransport, string(respBody), nil).
			WithContext("status", httpResp.StatusCode).
			WithRecoverable(httpResp.StatusCode >= 500)
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, errors.New(errors.CodeTransport, "parse response", err)
	}

	comp := &llm.Completion{Model: model}
	if len(apiResp.Content) > 0 {
		comp.Content = apiResp.Content[0].Text
	}
	return comp, nil
}

func runWithStdin(ctx context.Context, stdin, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Wire types for the Messages API.

type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Ensure Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)
