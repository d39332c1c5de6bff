// Package llm is the provider abstraction the Pulser router generates text
// through. It normalizes every backend, hosted APIs, a CLI-backed provider,
// and local model servers, behind one Generate call whose failures are values
// in the result, never raised errors.
package llm

import "context"

// Request is one generation request.
type Request struct {
	// Prompt is the user prompt. Required.
	Prompt string
	// System is an optional system instruction, sent before the prompt.
	System string
	// Model overrides the provider's default model when set.
	Model string
	// Temperature is the sampling temperature, 0.0 to 1.0.
	Temperature float64
	// MaxTokens bounds the output when positive; zero means no bound is sent.
	MaxTokens int
	// Provider overrides the generator's default provider when set.
	Provider string
	// Context tags the request for specialized handling, e.g. "code" or "general".
	Context string
}

// Result is the uniform outcome of a generation attempt. Exactly one of
// "Success true with empty Error" or "Success false with non-empty Error"
// holds. Content may be empty on success when the backend returned empty text.
type Result struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
	Error    string `json:"error"`
}

// Completion is the raw output of a single provider transport.
type Completion struct {
	Content string
	Model   string
}

// Provider is a single backend transport. Implementations return an error for
// any failure; the Generator folds those into Result values.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Completion, error)
}
