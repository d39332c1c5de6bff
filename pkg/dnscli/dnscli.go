// Package dnscli wraps the Vercel CLI for DNS record management and domain
// inspection. It is the domain-record backend the Shogun automation layer
// delegates to.
package dnscli

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// Result is the outcome of one CLI invocation.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client runs vercel CLI commands.
type Client struct {
	binary string
	scope  string
	logger *slog.Logger

	run func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithBinary sets the CLI binary name or path.
func WithBinary(binary string) Option {
	return func(c *Client) {
		c.binary = binary
	}
}

// WithScope sets the team scope passed to every invocation.
func WithScope(scope string) Option {
	return func(c *Client) {
		c.scope = scope
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a vercel CLI client.
func New(opts ...Option) *Client {
	c := &Client{
		binary: "vercel",
		logger: slog.Default(),
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddRecord adds one DNS record to a domain.
func (c *Client) AddRecord(ctx context.Context, domain, name, recordType, value string) Result {
	return c.exec(ctx, "dns", "add", domain, name, recordType, value)
}

// ListRecords lists the DNS records of a domain.
func (c *Client) ListRecords(ctx context.Context, domain string) Result {
	return c.exec(ctx, "dns", "ls", domain)
}

// InspectDomain returns the domain's verification and configuration status.
func (c *Client) InspectDomain(ctx context.Context, domain string) Result {
	return c.exec(ctx, "domains", "inspect", domain)
}

func (c *Client) exec(ctx context.Context, command ...string) Result {
	args := make([]string, 0, len(command)+2)
	if c.scope != "" {
		args = append(args, "--scope", c.scope)
	}
	args = append(args, command...)

	c.logger.InfoContext(ctx, "running vercel cli",
		slog.String("binary", c.binary),
		slog.String("args", strings.Join(args, " ")))

	stdout, stderr, err := c.run(ctx, c.binary, args...)
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		c.logger.ErrorContext(ctx, "vercel cli failed", slog.String("error", detail))
		return Result{Success: false, Error: detail}
	}
	return Result{Success: true, Output: string(stdout)}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
