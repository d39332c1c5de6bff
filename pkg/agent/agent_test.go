package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry()
	want := []string{"claudia", "echo", "kalaw", "maya", "caca", "basher", "shogun"}

	got := r.Keys()
	if len(got) != len(want) {
		t.Fatalf("got %d agents, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("agent %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewRegistryRejectsDuplicateKey(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Key: "claudia"},
		Descriptor{Key: "claudia"},
	)
	if err == nil {
		t.Fatal("expected error for duplicate key")
	}
}

func TestNewRegistryRejectsUnknownFallback(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Key: "echo", Fallback: "ghost"},
	)
	if err == nil {
		t.Fatal("expected error for unknown fallback")
	}
}

func TestNewRegistryRejectsFallbackCycle(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Key: "a", Fallback: "b"},
		Descriptor{Key: "b", Fallback: "a"},
	)
	if err == nil {
		t.Fatal("expected error for fallback cycle")
	}
}

func TestResolveWalksToRoot(t *testing.T) {
	r, err := NewRegistry(
		Descriptor{Key: "root"},
		Descriptor{Key: "mid", Fallback: "root"},
		Descriptor{Key: "leaf", Fallback: "mid"},
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	got, err := r.Resolve("leaf")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Key != "root" {
		t.Errorf("Resolve(leaf) = %q, want root", got.Key)
	}

	if _, err := r.Resolve("missing"); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestClassifyExplicitOverrideWins(t *testing.T) {
	r := DefaultRegistry()

	// Content says shogun, override says echo.
	d := r.Classify("please setup dns for example.com", "echo")
	if d.Agent != "echo" || d.Method != MethodExplicit {
		t.Errorf("got %+v, want explicit echo", d)
	}
}

func TestClassifyUnknownExplicitFallsThrough(t *testing.T) {
	r := DefaultRegistry()

	d := r.Classify("please setup dns for example.com", "nonexistent")
	if d.Agent != "shogun" || d.Method != MethodPattern {
		t.Errorf("got %+v, want pattern shogun", d)
	}
}

func TestClassifyPatterns(t *testing.T) {
	r := DefaultRegistry()

	cases := []struct {
		message string
		agent   string
	}{
		{"please setup dns for example.com", "shogun"},
		{"configure domain mysite.org", "shogun"},
		{"setup vercel for this project", "shogun"},
		{"execute tasks from the backlog", "claudia"},
		{`run task "build-site"`, "claudia"},
		{"Is this live?", "claudia"},
	}
	for _, tc := range cases {
		d := r.Classify(tc.message, "")
		if d.Agent != tc.agent || d.Method != MethodPattern {
			t.Errorf("Classify(%q) = %+v, want pattern %s", tc.message, d, tc.agent)
		}
	}
}

func TestClassifyTriggers(t *testing.T) {
	r := DefaultRegistry()

	cases := []struct {
		message string
		agent   string
		trigger string
	}{
		{"transcribe this meeting for me", "echo", "transcribe"},
		{"research the market for me", "kalaw", "research"},
		{"draw a workflow for onboarding", "maya", "workflow"},
		{"open a terminal session", "basher", "terminal"},
		{"click the submit button", "shogun", "click"},
	}
	for _, tc := range cases {
		d := r.Classify(tc.message, "")
		if d.Agent != tc.agent || d.Method != MethodTrigger || d.Trigger != tc.trigger {
			t.Errorf("Classify(%q) = %+v, want trigger %s/%s", tc.message, d, tc.agent, tc.trigger)
		}
	}
}

func TestClassifyTriggerFirstMatchInRegistryOrder(t *testing.T) {
	r := DefaultRegistry()

	// "verify" nominates caca and "command" nominates basher; caca is
	// registered first so it wins.
	d := r.Classify("verify the command output", "")
	if d.Agent != "caca" {
		t.Errorf("got %q, want caca (registry order)", d.Agent)
	}
}

func TestClassifySubstringMatchIsIntentional(t *testing.T) {
	r := DefaultRegistry()

	// "planet" contains the claudia trigger "plan". Partial-word matches
	// are part of the routing contract.
	d := r.Classify("tell me about the planet mars", "")
	if d.Agent != "claudia" || d.Method != MethodTrigger || d.Trigger != "plan" {
		t.Errorf("got %+v, want trigger claudia/plan", d)
	}
}

func TestClassifyDefault(t *testing.T) {
	r := DefaultRegistry()

	d := r.Classify("hello there", "")
	if d.Agent != "claudia" || d.Method != MethodDefault {
		t.Errorf("got %+v, want default claudia", d)
	}
}

func TestClassifyDeterminism(t *testing.T) {
	r := DefaultRegistry()

	first := r.Classify("research the docker workflow", "")
	for i := 0; i < 10; i++ {
		if got := r.Classify("research the docker workflow", ""); got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestSurfaceHelpers(t *testing.T) {
	if !IsLiveCheck("Is this live?") {
		t.Error("IsLiveCheck missed the status question")
	}
	if IsLiveCheck("is the deployment alive") {
		t.Error("IsLiveCheck false positive")
	}
	if !IsTaskRequest(`run task "deploy"`) {
		t.Error("IsTaskRequest missed run task")
	}
	if IsTaskRequest("automate tasks overnight") {
		t.Error("IsTaskRequest should not match automate phrasing")
	}
	if !MentionsDomain("what about my domain?") {
		t.Error("MentionsDomain missed domain")
	}
	if MentionsDomain("nothing related here") {
		t.Error("MentionsDomain false positive")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	data := []byte(`
agents:
  - key: alpha
    description: First agent
    triggers: [one, two]
  - key: beta
    description: Second agent
    triggers: [three]
    fallback: alpha
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	r, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "beta" {
		t.Errorf("keys = %v", keys)
	}
	b, ok := r.Lookup("beta")
	if !ok || b.Fallback != "alpha" {
		t.Errorf("beta = %+v", b)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest("/nonexistent/agents.yaml"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
