package llm

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pulseops/pulser/pkg/errors"
)

// CLIFallback generates text by shelling out to the Pulser orchestration CLI
// as a last resort when no provider transport can serve a request. It runs
// `<binary> ask <prompt> --agent <agent>` and returns stdout as content.
type CLIFallback struct {
	binary string
	agent  string

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// CLIOption configures a CLIFallback.
type CLIOption func(*CLIFallback)

// WithBinary sets the CLI binary name or path.
func WithBinary(binary string) CLIOption {
	return func(c *CLIFallback) {
		c.binary = binary
	}
}

// WithAgent sets the agent the CLI is asked as.
func WithAgent(agent string) CLIOption {
	return func(c *CLIFallback) {
		c.agent = agent
	}
}

// NewCLIFallback creates a fallback that asks the pulser CLI as claudia.
func NewCLIFallback(opts ...CLIOption) *CLIFallback {
	c := &CLIFallback{
		binary:   "pulser",
		agent:    "claudia",
		lookPath: exec.LookPath,
		run:      runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the synthetic model id reported for CLI-generated content.
func (c *CLIFallback) Model() string {
	return "pulser-" + c.agent
}

// Available reports whether the CLI binary is on the execution path.
func (c *CLIFallback) Available() bool {
	_, err := c.lookPath(c.binary)
	return err == nil
}

// Ask sends the prompt through the CLI. Stdout is returned unmodified as
// content; a non-zero exit is an error carrying stderr.
func (c *CLIFallback) Ask(ctx context.Context, prompt string) (*Completion, error) {
	stdout, stderr, err := c.run(ctx, c.binary, "ask", prompt, "--agent", c.agent)
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		return nil, errors.New(errors.CodeTransport, detail, err).
			WithContext("binary", c.binary).
			WithRecoverable(true)
	}
	return &Completion{
		Content: string(stdout),
		Model:   "pulser-" + c.agent,
	}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
