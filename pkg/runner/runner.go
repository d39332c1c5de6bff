// Package runner wraps the external collaborators the orchestrator delegates
// to: the Pulser task CLI and the Shogun UI-automation runner. Collaborator
// failures are folded into the returned payload, never raised, so a failed
// delegation still completes the enclosing request.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// runFunc executes a command and returns its stdout and stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// flattenParams turns a parameter map into --key value argument pairs, in
// sorted key order so invocations are deterministic.
func flattenParams(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, "--"+k, params[k])
	}
	return args
}

// decodeOutput interprets collaborator stdout: structured JSON when the
// stream parses as a JSON object, otherwise free text under "output".
func decodeOutput(stdout []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(stdout))
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed)
	}
	return mustJSON(map[string]string{"output": trimmed})
}

// errorPayload folds a failed invocation into a payload.
func errorPayload(stderr []byte, err error) json.RawMessage {
	detail := strings.TrimSpace(string(stderr))
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return mustJSON(map[string]string{"error": detail})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"error":"internal encoding failure"}`)
	}
	return data
}

// TaskRunner delegates named tasks to the Pulser orchestration CLI,
// `pulser execute-task <name> --key value ...`.
type TaskRunner struct {
	binary string
	logger *slog.Logger
	run    runFunc
}

// TaskOption configures a TaskRunner.
type TaskOption func(*TaskRunner)

// WithTaskBinary sets the CLI binary name or path.
func WithTaskBinary(binary string) TaskOption {
	return func(r *TaskRunner) {
		r.binary = binary
	}
}

// WithTaskLogger sets the structured logger.
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(r *TaskRunner) {
		r.logger = l
	}
}

// NewTaskRunner creates a runner over the pulser CLI.
func NewTaskRunner(opts ...TaskOption) *TaskRunner {
	r := &TaskRunner{
		binary: "pulser",
		logger: slog.Default(),
		run:    runCommand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs one named task. The returned payload is the task's structured
// output, its free-text output, or the captured error.
func (r *TaskRunner) Execute(ctx context.Context, taskName string, params map[string]string) json.RawMessage {
	args := append([]string{"execute-task", taskName}, flattenParams(params)...)
	r.logger.InfoContext(ctx, "executing task",
		slog.String("task", taskName),
		slog.String("binary", r.binary))

	stdout, stderr, err := r.run(ctx, r.binary, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "task execution failed",
			slog.String("task", taskName),
			slog.String("stderr", strings.TrimSpace(string(stderr))))
		return errorPayload(stderr, err)
	}
	return decodeOutput(stdout)
}

// ShogunRunner delegates UI-automation actions to the shogun runner binary,
// `shogun-runner <action> --domain example.com ...`.
type ShogunRunner struct {
	binary   string
	logger   *slog.Logger
	lookPath func(string) (string, error)
	run      runFunc
}

// ShogunOption configures a ShogunRunner.
type ShogunOption func(*ShogunRunner)

// WithShogunBinary sets the runner binary name or path.
func WithShogunBinary(binary string) ShogunOption {
	return func(r *ShogunRunner) {
		r.binary = binary
	}
}

// WithShogunLogger sets the structured logger.
func WithShogunLogger(l *slog.Logger) ShogunOption {
	return func(r *ShogunRunner) {
		r.logger = l
	}
}

// NewShogunRunner creates a runner over the shogun binary.
func NewShogunRunner(opts ...ShogunOption) *ShogunRunner {
	r := &ShogunRunner{
		binary:   "shogun-runner",
		logger:   slog.Default(),
		lookPath: exec.LookPath,
		run:      runCommand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one automation action. A missing runner binary is reported in
// the payload with a user-facing message rather than an error.
func (r *ShogunRunner) Run(ctx context.Context, action string, params map[string]string) json.RawMessage {
	if _, err := r.lookPath(r.binary); err != nil {
		r.logger.ErrorContext(ctx, "shogun runner not found", slog.String("binary", r.binary))
		return mustJSON(map[string]string{
			"error":   "Shogun runner not found",
			"message": "I cannot perform UI automation as the Shogun agent is not properly installed.",
		})
	}

	args := append([]string{action}, flattenParams(params)...)
	r.logger.InfoContext(ctx, "running shogun",
		slog.String("action", action),
		slog.String("binary", r.binary))

	stdout, stderr, err := r.run(ctx, r.binary, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "shogun execution failed",
			slog.String("action", action),
			slog.String("stderr", strings.TrimSpace(string(stderr))))
		return errorPayload(stderr, err)
	}
	return decodeOutput(stdout)
}
