// Package orchestrator composes the router core: classify the message, handle
// the special-cased flows, delegate to a collaborator or generate a reply,
// persist the exchange, and return the payload. Collaborator failures never
// abort a request; they ride inside the payload and the request still
// completes and persists.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulseops/pulser/pkg/agent"
	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/llm"
	"github.com/pulseops/pulser/pkg/memory"
	"github.com/pulseops/pulser/pkg/resilience"
	"github.com/pulseops/pulser/pkg/runner"
	"github.com/pulseops/pulser/pkg/telemetry"
)

// contextLimit is how many recent records a generated reply echoes back.
const contextLimit = 5

// helpReply is the canned answer to help and capability questions.
const helpReply = "Pulser can help with various tasks including:\n" +
	"- Setting up domains and DNS\n" +
	"- Orchestrating agent workflows\n" +
	"- Processing voice inputs\n" +
	"- Automating UI tasks with Shogun\n" +
	"- Executing commands and scripts\n\n" +
	"Try asking about specific tasks you need help with!"

// Response is the payload returned for a handled message. Exactly one shape
// is populated per request: status, automation, task, or generated reply.
type Response struct {
	Agent       string   `json:"agent,omitempty"`
	Message     string   `json:"message,omitempty"`
	LLMProvider string   `json:"llm_provider,omitempty"`
	Context     []string `json:"context,omitempty"`
	Timestamp   string   `json:"timestamp"`

	// Status payload for the live check.
	ActiveAgents   map[string]bool `json:"active_agents,omitempty"`
	BackendStatus  string          `json:"backend_status,omitempty"`
	FrontendStatus string          `json:"frontend_status,omitempty"`

	// Delegated collaborator payloads.
	Automation json.RawMessage `json:"automation,omitempty"`
	Task       json.RawMessage `json:"task,omitempty"`
}

// Orchestrator routes messages end to end.
type Orchestrator struct {
	registry  *agent.Registry
	generator *llm.Generator
	store     memory.ContextStore
	shogun    *runner.ShogunRunner
	tasks     *runner.TaskRunner
	logger    *slog.Logger
	metrics   *telemetry.RouterMetrics
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry sets the agent registry.
func WithRegistry(r *agent.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = r
	}
}

// WithGenerator sets the response generator.
func WithGenerator(g *llm.Generator) Option {
	return func(o *Orchestrator) {
		o.generator = g
	}
}

// WithStore sets the conversation context store.
func WithStore(s memory.ContextStore) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithShogunRunner sets the UI-automation collaborator.
func WithShogunRunner(r *runner.ShogunRunner) Option {
	return func(o *Orchestrator) {
		o.shogun = r
	}
}

// WithTaskRunner sets the task execution collaborator.
func WithTaskRunner(r *runner.TaskRunner) Option {
	return func(o *Orchestrator) {
		o.tasks = r
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMetrics sets the metrics tracker. A nil tracker is safe.
func WithMetrics(m *telemetry.RouterMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an Orchestrator. Defaults: the built-in agent table, a
// generator over the built-in provider table, an in-memory context store, and
// the standard collaborator binaries.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  agent.DefaultRegistry(),
		generator: llm.NewGenerator(nil),
		store:     memory.NewInMemoryStore(),
		shogun:    runner.NewShogunRunner(),
		tasks:     runner.NewTaskRunner(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("pulser/orchestrator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle processes one message. The state machine is linear and terminal on
// first match: live check, DNS delegation, task delegation, generated reply.
func (o *Orchestrator) Handle(ctx context.Context, message, requestedAgent string) Response {
	ctx, span := o.tracer.Start(ctx, "orchestrator.handle")
	defer span.End()

	decision := o.registry.Classify(message, requestedAgent)
	o.metrics.RecordClassification(ctx, decision.Agent, string(decision.Method))
	span.SetAttributes(
		attribute.String("pulser.agent", decision.Agent),
		attribute.String("pulser.method", string(decision.Method)),
	)
	o.logger.InfoContext(ctx, "classified message",
		slog.String("agent", decision.Agent),
		slog.String("method", string(decision.Method)))

	if agent.IsLiveCheck(message) {
		resp := o.liveStatus()
		o.persist(ctx, message, agent.KeyClaudia, resp)
		return resp
	}

	if decision.Agent == agent.KeyShogun && agent.MentionsDomain(message) {
		resp := o.handleDNS(ctx, message)
		o.persist(ctx, message, agent.KeyShogun, resp)
		return resp
	}

	if agent.IsTaskRequest(message) {
		if name, ok := extractTaskName(message); ok {
			payload := o.tasks.Execute(ctx, name, nil)
			resp := Response{
				Agent:     agent.KeyClaudia,
				Task:      payload,
				Timestamp: o.timestamp(),
			}
			o.persist(ctx, message, agent.KeyClaudia, resp)
			return resp
		}
	}

	resp := o.generateReply(ctx, message, decision.Agent)
	o.persist(ctx, message, decision.Agent, resp)
	return resp
}

// liveStatus builds the fixed status payload. Claudia, echo, and shogun are
// the agents currently backed by running components.
func (o *Orchestrator) liveStatus() Response {
	active := map[string]bool{
		agent.KeyClaudia: true,
		"echo":           true,
		agent.KeyShogun:  true,
	}
	agents := make(map[string]bool, len(o.registry.Keys()))
	for _, key := range o.registry.Keys() {
		agents[key] = active[key]
	}

	provider := o.generator.DefaultProviderKey()
	return Response{
		ActiveAgents:   agents,
		BackendStatus:  "operational",
		FrontendStatus: "connected",
		LLMProvider:    provider,
		Message: fmt.Sprintf(
			"Yes, this is live! The Pulser Web Interface is fully connected to the backend orchestration system. "+
				"Agents Claudia, Echo, and Shogun are active and responding to requests. "+
				"Currently using %s as the cognitive engine.",
			strings.ToUpper(provider)),
		Timestamp: o.timestamp(),
	}
}

// handleDNS extracts the domain, infers the action, and delegates to the
// shogun collaborator.
func (o *Orchestrator) handleDNS(ctx context.Context, message string) Response {
	params := map[string]string{}
	if domain, ok := extractDomain(message); ok {
		params["domain"] = domain
	}

	action := inferDNSAction(message)
	o.logger.InfoContext(ctx, "delegating dns request",
		slog.String("action", action),
		slog.String("domain", params["domain"]))

	payload := o.shogun.Run(ctx, action, params)
	return Response{
		Agent:      agent.KeyShogun,
		Automation: payload,
		Timestamp:  o.timestamp(),
	}
}

// generateReply answers with the canned help text or a generated message,
// echoing the timestamps of recent context records.
func (o *Orchestrator) generateReply(ctx context.Context, message, agentKey string) Response {
	recent, _ := o.store.Recent(ctx, contextLimit)
	timestamps := make([]string, 0, len(recent))
	for _, rec := range recent {
		timestamps = append(timestamps, rec.Timestamp)
	}

	var reply string
	lower := strings.ToLower(message)
	if strings.Contains(lower, "help") || strings.Contains(lower, "what can you do") {
		reply = helpReply
	} else {
		desc, _ := o.registry.Lookup(agentKey)
		system := fmt.Sprintf(
			"You are %s, an agent in the Pulser system.\nYour role is to %s.\nRespond to the user's message concisely and professionally.",
			agentKey, desc.Description)

		acknowledgment := fmt.Sprintf(
			"I've received your request: %q. As the %s agent, I can help you with this. What specific action would you like me to take?",
			message, agentKey)

		value, _ := resilience.WithFallback(ctx, func() (interface{}, error) {
			result := o.generator.Generate(ctx, llm.Request{
				Prompt:      message,
				System:      system,
				Temperature: 0.7,
				Context:     "general",
			})
			if !result.Success {
				o.logger.WarnContext(ctx, "generation failed, using fallback reply",
					slog.String("error", result.Error))
				return nil, errors.New(errors.CodeExhausted, result.Error, nil)
			}
			o.logger.InfoContext(ctx, "generated reply",
				slog.String("provider", result.Provider),
				slog.String("agent", agentKey))
			return result.Content, nil
		}, &resilience.StaticFallback{Value: acknowledgment})
		reply = value.(string)
	}

	return Response{
		Agent:       agentKey,
		Message:     reply,
		LLMProvider: o.generator.DefaultProviderKey(),
		Context:     timestamps,
		Timestamp:   o.timestamp(),
	}
}

// persist appends the exchange to the context store. Persistence failures are
// logged and counted, never surfaced to the caller.
func (o *Orchestrator) persist(ctx context.Context, message, agentKey string, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		o.logger.WarnContext(ctx, "encoding response for persistence failed", slog.String("error", err.Error()))
		return
	}
	err = o.store.Append(ctx, memory.ContextRecord{
		Agent:    agentKey,
		Message:  message,
		Response: payload,
	})
	if err != nil {
		o.metrics.RecordPersistenceError(ctx, "append")
		o.logger.WarnContext(ctx, "persisting context record failed",
			slog.String("agent", agentKey),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) timestamp() string {
	return o.now().Format(time.RFC3339)
}
