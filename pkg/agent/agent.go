// Package agent defines the named handlers Pulser routes messages to and the
// trigger-based classifier that picks one for an incoming message.
package agent

import (
	"fmt"

	"github.com/pulseops/pulser/pkg/errors"
)

// Well-known agent keys used by the router's special cases.
const (
	// KeyClaudia is the primary orchestration agent and the classifier default.
	KeyClaudia = "claudia"
	// KeyShogun is the UI automation agent that owns DNS and domain requests.
	KeyShogun = "shogun"
)

// Descriptor describes one agent: its key, what it does, the keywords that
// nominate it, and an optional fallback agent key.
type Descriptor struct {
	Key         string   `yaml:"key"`
	Description string   `yaml:"description"`
	Triggers    []string `yaml:"triggers"`
	Fallback    string   `yaml:"fallback,omitempty"`
}

// Registry holds an ordered set of agent descriptors. Trigger scanning walks
// agents in registration order, so order is part of the routing contract.
// A Registry is immutable after construction.
type Registry struct {
	agents []Descriptor
	index  map[string]int
}

// NewRegistry builds a registry from descriptors in the given order.
// Keys must be unique, every fallback must name a registered agent, and the
// fallback graph must be acyclic.
func NewRegistry(agents ...Descriptor) (*Registry, error) {
	if len(agents) == 0 {
		return nil, errors.New(errors.CodeConfig, "agent registry requires at least one agent", nil)
	}

	r := &Registry{
		agents: make([]Descriptor, len(agents)),
		index:  make(map[string]int, len(agents)),
	}
	copy(r.agents, agents)

	for i, a := range r.agents {
		if a.Key == "" {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("agent at position %d has empty key", i), nil)
		}
		if _, dup := r.index[a.Key]; dup {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("duplicate agent key %q", a.Key), nil)
		}
		r.index[a.Key] = i
	}

	for _, a := range r.agents {
		if a.Fallback == "" {
			continue
		}
		if _, ok := r.index[a.Fallback]; !ok {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("agent %q falls back to unknown agent %q", a.Key, a.Fallback), nil)
		}
		if err := r.checkFallbackChain(a.Key); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// checkFallbackChain walks the fallback links from key and fails on a cycle.
func (r *Registry) checkFallbackChain(key string) error {
	seen := map[string]bool{}
	for key != "" {
		if seen[key] {
			return errors.New(errors.CodeConfig,
				fmt.Sprintf("fallback cycle detected through agent %q", key), nil)
		}
		seen[key] = true
		key = r.agents[r.index[key]].Fallback
	}
	return nil
}

// Lookup returns the descriptor for key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	i, ok := r.index[key]
	if !ok {
		return Descriptor{}, false
	}
	return r.agents[i], true
}

// All returns the descriptors in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.agents))
	copy(out, r.agents)
	return out
}

// Keys returns the agent keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.agents))
	for i, a := range r.agents {
		keys[i] = a.Key
	}
	return keys
}

// Resolve follows the fallback chain from key until it reaches a root agent,
// one with no fallback of its own.
func (r *Registry) Resolve(key string) (Descriptor, error) {
	a, ok := r.Lookup(key)
	if !ok {
		return Descriptor{}, errors.New(errors.CodeNotFound, fmt.Sprintf("unknown agent %q", key), nil)
	}
	for a.Fallback != "" {
		a, _ = r.Lookup(a.Fallback)
	}
	return a, nil
}

// DefaultRegistry returns the built-in Pulser agent table. Claudia is first
// so it wins ties during trigger scanning.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Descriptor{
			Key:         KeyClaudia,
			Description: "Primary orchestration agent",
			Triggers:    []string{"organize", "manage", "coordinate", "orchestrate", "plan", "schedule"},
		},
		Descriptor{
			Key:         "echo",
			Description: "Voice and perception agent",
			Triggers:    []string{"listen", "hear", "voice", "transcribe", "record", "audio", "sound"},
			Fallback:    KeyClaudia,
		},
		Descriptor{
			Key:         "kalaw",
			Description: "Knowledge agent",
			Triggers:    []string{"research", "find", "search", "lookup", "knowledge", "information"},
			Fallback:    KeyClaudia,
		},
		Descriptor{
			Key:         "maya",
			Description: "Workflow agent",
			Triggers:    []string{"workflow", "process", "steps", "procedure", "diagram", "design"},
			Fallback:    KeyClaudia,
		},
		Descriptor{
			Key:         "caca",
			Description: "QA agent",
			Triggers:    []string{"verify", "check", "test", "quality", "validate", "assessment"},
			Fallback:    KeyClaudia,
		},
		Descriptor{
			Key:         "basher",
			Description: "System operation agent",
			Triggers:    []string{"terminal", "command", "bash", "script", "run", "execute", "ssh", "docker"},
			Fallback:    KeyClaudia,
		},
		Descriptor{
			Key:         KeyShogun,
			Description: "UI automation agent",
			Triggers:    []string{"automate", "browser", "click", "fill", "form", "interface", "dns", "domain"},
			Fallback:    KeyClaudia,
		},
	)
	if err != nil {
		// The built-in table is static and validated by tests.
		panic(err)
	}
	return r
}
