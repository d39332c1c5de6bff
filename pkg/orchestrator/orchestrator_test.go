package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pulseops/pulser/pkg/agent"
	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/llm"
	"github.com/pulseops/pulser/pkg/memory"
	"github.com/pulseops/pulser/pkg/runner"
)

// fakeBinary writes a stand-in collaborator binary that logs its arguments
// and prints the given stdout.
func fakeBinary(t *testing.T, name, stdout string) (binary, argLog string) {
	t.Helper()
	dir := t.TempDir()
	binary = filepath.Join(dir, name)
	argLog = filepath.Join(dir, "args.log")

	script := "#!/bin/sh\necho \"$@\" >> " + argLog + "\nprintf '%s' '" + stdout + "'\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return binary, argLog
}

func loggedArgs(t *testing.T, argLog string) []string {
	t.Helper()
	data, err := os.ReadFile(argLog)
	if err != nil {
		t.Fatalf("read arg log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func succeedingGenerator(content string) *llm.Generator {
	return llm.NewGenerator(nil,
		llm.WithTransport(llm.ProviderClaude, &llm.MockProvider{Response: llm.Completion{Content: content}}))
}

func failingGenerator(detail string) *llm.Generator {
	return llm.NewGenerator(nil,
		llm.WithTransport(llm.ProviderClaude, &llm.MockProvider{Err: errors.New(errors.CodeTransport, detail, nil)}))
}

func lastRecord(t *testing.T, store memory.ContextStore) memory.ContextRecord {
	t.Helper()
	records, err := store.Recent(context.Background(), 1)
	if err != nil || len(records) != 1 {
		t.Fatalf("Recent = %v, %v", records, err)
	}
	return records[0]
}

func TestHandleDNSSetupScenario(t *testing.T) {
	binary, argLog := fakeBinary(t, "shogun-runner",
		`{"success": true, "domain": "example.com"}`)
	store := memory.NewInMemoryStore()
	o := New(
		WithStore(store),
		WithShogunRunner(runner.NewShogunRunner(runner.WithShogunBinary(binary))),
		WithGenerator(succeedingGenerator("unused")),
	)

	resp := o.Handle(context.Background(), "please setup dns for example.com", "")

	if resp.Agent != "shogun" {
		t.Errorf("agent = %q, want shogun", resp.Agent)
	}
	calls := loggedArgs(t, argLog)
	if calls[0] != "setup_dns --domain example.com" {
		t.Errorf("shogun invocation = %q", calls[0])
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Automation, &payload); err != nil {
		t.Fatalf("automation payload: %v", err)
	}
	if payload["success"] != true || payload["domain"] != "example.com" {
		t.Errorf("payload = %v", payload)
	}

	rec := lastRecord(t, store)
	if rec.Agent != "shogun" {
		t.Errorf("persisted agent = %q", rec.Agent)
	}
}

func TestHandleDNSActionInference(t *testing.T) {
	// The verify and info messages carry caca and echo trigger words, so
	// they reach shogun only through an explicit override.
	cases := []struct {
		message string
		agent   string
		action  string
	}{
		{"please setup dns for example.com", "", "setup_dns"},
		{"verify the dns for example.com", "shogun", "verify_dns"},
		{"what are the dns records for example.com", "shogun", "dns_info"},
	}
	for _, tc := range cases {
		binary, argLog := fakeBinary(t, "shogun-runner", `{"success": true}`)
		o := New(
			WithShogunRunner(runner.NewShogunRunner(runner.WithShogunBinary(binary))),
			WithGenerator(succeedingGenerator("unused")),
		)

		o.Handle(context.Background(), tc.message, tc.agent)

		calls := loggedArgs(t, argLog)
		if !strings.HasPrefix(calls[0], tc.action+" ") {
			t.Errorf("Handle(%q) invoked %q, want action %s", tc.message, calls[0], tc.action)
		}
	}
}

func TestHandleLiveCheckScenario(t *testing.T) {
	store := memory.NewInMemoryStore()
	o := New(WithStore(store), WithGenerator(succeedingGenerator("unused")))

	resp := o.Handle(context.Background(), "Is this live?", "")

	if resp.LLMProvider != llm.DefaultProvider {
		t.Errorf("llm_provider = %q, want %q", resp.LLMProvider, llm.DefaultProvider)
	}
	if resp.BackendStatus != "operational" || resp.FrontendStatus != "connected" {
		t.Errorf("status = %q/%q", resp.BackendStatus, resp.FrontendStatus)
	}
	if !resp.ActiveAgents["claudia"] || !resp.ActiveAgents["echo"] || !resp.ActiveAgents["shogun"] {
		t.Errorf("active agents = %v", resp.ActiveAgents)
	}
	if resp.ActiveAgents["maya"] || resp.ActiveAgents["basher"] {
		t.Errorf("inactive agents marked active: %v", resp.ActiveAgents)
	}
	if !strings.Contains(resp.Message, "Yes, this is live!") {
		t.Errorf("message = %q", resp.Message)
	}

	rec := lastRecord(t, store)
	if rec.Agent != "claudia" {
		t.Errorf("persisted agent = %q, want claudia", rec.Agent)
	}
}

func TestHandleTaskScenario(t *testing.T) {
	binary, argLog := fakeBinary(t, "pulser", `{"status": "started"}`)
	store := memory.NewInMemoryStore()
	o := New(
		WithStore(store),
		WithTaskRunner(runner.NewTaskRunner(runner.WithTaskBinary(binary))),
		WithGenerator(succeedingGenerator("unused")),
	)

	resp := o.Handle(context.Background(), `run task "build-site"`, "")

	if resp.Agent != "claudia" {
		t.Errorf("agent = %q, want claudia", resp.Agent)
	}
	calls := loggedArgs(t, argLog)
	if calls[0] != "execute-task build-site" {
		t.Errorf("task invocation = %q, want no extra parameters", calls[0])
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Task, &payload); err != nil {
		t.Fatalf("task payload: %v", err)
	}
	if payload["status"] != "started" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandleTaskPhrasingWithoutQuotedNameGeneratesReply(t *testing.T) {
	o := New(WithGenerator(succeedingGenerator("sure, which tasks?")))

	resp := o.Handle(context.Background(), "run tasks for me", "")

	if resp.Task != nil {
		t.Errorf("unexpected task delegation: %s", resp.Task)
	}
	if resp.Message != "sure, which tasks?" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestHandleGeneratedReply(t *testing.T) {
	store := memory.NewInMemoryStore()
	o := New(WithStore(store), WithGenerator(succeedingGenerator("hello, I am claudia")))

	// Seed two prior exchanges whose timestamps the reply should echo.
	o.Handle(context.Background(), "tell me a story", "")
	o.Handle(context.Background(), "another story", "")

	resp := o.Handle(context.Background(), "and one more", "")

	if resp.Agent != "claudia" {
		t.Errorf("agent = %q", resp.Agent)
	}
	if resp.Message != "hello, I am claudia" {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.Context) != 2 {
		t.Errorf("context = %v, want 2 timestamps", resp.Context)
	}
	if resp.LLMProvider != llm.DefaultProvider {
		t.Errorf("llm_provider = %q", resp.LLMProvider)
	}
}

func TestHandleGenerationFailureFallbackReply(t *testing.T) {
	store := memory.NewInMemoryStore()
	o := New(WithStore(store), WithGenerator(failingGenerator("upstream down")))

	resp := o.Handle(context.Background(), "summarize my inbox", "")

	want := `I've received your request: "summarize my inbox". As the claudia agent, I can help you with this. What specific action would you like me to take?`
	if resp.Message != want {
		t.Errorf("message = %q", resp.Message)
	}

	// The failed generation still persists.
	rec := lastRecord(t, store)
	if rec.Message != "summarize my inbox" {
		t.Errorf("persisted message = %q", rec.Message)
	}
}

func TestHandleHelpCannedReply(t *testing.T) {
	// A failing generator proves the canned path never calls it.
	o := New(WithGenerator(failingGenerator("should not be called")))

	resp := o.Handle(context.Background(), "help me out", "")

	if !strings.Contains(resp.Message, "Pulser can help with various tasks") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestHandleExplicitAgentOverride(t *testing.T) {
	o := New(WithGenerator(succeedingGenerator("speaking as echo")))

	resp := o.Handle(context.Background(), "tell me something", "echo")

	if resp.Agent != "echo" {
		t.Errorf("agent = %q, want echo", resp.Agent)
	}
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, rec memory.ContextRecord) error {
	return errors.New(errors.CodePersistence, "disk full", nil)
}

func (failingStore) Recent(ctx context.Context, limit int) ([]memory.ContextRecord, error) {
	return nil, nil
}

func TestHandleSurvivesPersistenceFailure(t *testing.T) {
	o := New(WithStore(failingStore{}), WithGenerator(succeedingGenerator("still fine")))

	resp := o.Handle(context.Background(), "tell me something", "")

	if resp.Message != "still fine" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestExtractDomain(t *testing.T) {
	cases := map[string]string{
		"please setup dns for example.com":   "example.com",
		"configure domain shop.mysite.co.uk": "shop.mysite.co.uk",
		"setup dns please":                   "",
	}
	for message, want := range cases {
		got, ok := extractDomain(message)
		if want == "" {
			if ok {
				t.Errorf("extractDomain(%q) = %q, want none", message, got)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("extractDomain(%q) = %q, want %q", message, got, want)
		}
	}
}

func TestExtractTaskName(t *testing.T) {
	got, ok := extractTaskName(`Run task "Build-Site"`)
	if !ok || got != "Build-Site" {
		t.Errorf("extractTaskName = %q, %v", got, ok)
	}
	if _, ok := extractTaskName("run tasks"); ok {
		t.Error("extractTaskName matched without a quoted name")
	}
}

func TestAgentRegistryClassificationReachesOrchestrator(t *testing.T) {
	reg, err := agent.NewRegistry(
		agent.Descriptor{Key: "claudia", Description: "Primary orchestration agent"},
		agent.Descriptor{Key: "shogun", Description: "UI automation agent", Triggers: []string{"dns"}, Fallback: "claudia"},
		agent.Descriptor{Key: "scribe", Description: "Note-taking agent", Triggers: []string{"notes"}, Fallback: "claudia"},
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	o := New(WithRegistry(reg), WithGenerator(succeedingGenerator("noted")))

	resp := o.Handle(context.Background(), "take notes on this meeting", "")
	if resp.Agent != "scribe" {
		t.Errorf("agent = %q, want scribe from custom registry", resp.Agent)
	}
}
