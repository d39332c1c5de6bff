package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pulseops/pulser/pkg/errors"
	"github.com/pulseops/pulser/pkg/resilience"
	"github.com/pulseops/pulser/pkg/telemetry"
)

// Apology is the fixed user-facing message returned when every generation
// tier has been exhausted.
const Apology = "I'm sorry, but all LLM providers are currently unavailable."

// Generator resolves a provider for each request and runs its transport under
// a uniform timeout, falling back to the orchestration CLI when no transport
// can serve. Generate never returns an error; every failure mode is folded
// into the Result.
type Generator struct {
	registry        *Registry
	transports      map[string]Provider
	defaultProvider string
	timeout         time.Duration
	retry           resilience.RetryConfig
	cli             *CLIFallback
	metrics         *telemetry.RouterMetrics
	logger          *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithDefaultProvider sets the provider used when a request names none.
// The default is fixed at construction; there is no process-wide mutable
// provider state.
func WithDefaultProvider(key string) GeneratorOption {
	return func(g *Generator) {
		if key != "" {
			g.defaultProvider = strings.ToLower(key)
		}
	}
}

// WithTimeout bounds every transport call.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.timeout = d
	}
}

// WithRetry sets the per-tier retry policy.
func WithRetry(rc resilience.RetryConfig) GeneratorOption {
	return func(g *Generator) {
		g.retry = rc
	}
}

// WithTransport registers the transport for a provider key.
func WithTransport(key string, p Provider) GeneratorOption {
	return func(g *Generator) {
		g.transports[key] = p
	}
}

// WithCLIFallback sets the last-resort CLI tier.
func WithCLIFallback(cli *CLIFallback) GeneratorOption {
	return func(g *Generator) {
		g.cli = cli
	}
}

// WithMetrics sets the metrics tracker. A nil tracker is safe.
func WithMetrics(m *telemetry.RouterMetrics) GeneratorOption {
	return func(g *Generator) {
		g.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator creates a Generator over the given provider registry.
// A nil registry uses the built-in provider table.
func NewGenerator(registry *Registry, opts ...GeneratorOption) *Generator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	g := &Generator{
		registry:        registry,
		transports:      make(map[string]Provider),
		defaultProvider: DefaultProvider,
		timeout:         30 * time.Second,
		retry:           resilience.DefaultRetryConfig(),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultProviderKey returns the provider used when requests name none.
func (g *Generator) DefaultProviderKey() string {
	return g.defaultProvider
}

// Generate produces text for the request. Tiers, in order: the resolved
// provider's transport, the orchestration CLI, then a terminal failure
// result. An unknown provider key fails immediately without any outbound
// call.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	provider := g.defaultProvider
	if req.Provider != "" {
		provider = strings.ToLower(req.Provider)
	}

	cfg, known := g.registry.Lookup(provider)
	if !known {
		g.logger.ErrorContext(ctx, "invalid llm provider", slog.String("provider", provider))
		g.metrics.RecordGeneration(ctx, provider, "provider", false)
		return Result{
			Provider: provider,
			Success:  false,
			Error:    "Invalid LLM provider: " + provider,
		}
	}

	model := req.Model
	if model == "" {
		model = cfg.DefaultModel
	}
	req.Model = model

	var transportErr error
	if transport, ok := g.transports[provider]; ok {
		var comp *Completion
		err := g.retry.Do(ctx, func() error {
			return resilience.WithTimeout(ctx, resilience.TimeoutConfig{Duration: g.timeout}, func(ctx context.Context) error {
				c, err := transport.Generate(ctx, req)
				if err != nil {
					return err
				}
				comp = c
				return nil
			})
		})
		if err == nil {
			g.logger.InfoContext(ctx, "generation succeeded",
				slog.String("provider", provider),
				slog.String("model", completionModel(comp, model)))
			g.metrics.RecordGeneration(ctx, provider, "provider", true)
			return Result{
				Content:  comp.Content,
				Model:    completionModel(comp, model),
				Provider: provider,
				Success:  true,
			}
		}
		transportErr = err
		g.logger.WarnContext(ctx, "provider transport failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()))
		g.metrics.RecordGeneration(ctx, provider, "provider", false)
	}

	if g.cli != nil && g.cli.Available() {
		comp, err := g.cli.Ask(ctx, req.Prompt)
		if err == nil {
			g.metrics.RecordGeneration(ctx, "pulser", "cli", true)
			return Result{
				Content:  comp.Content,
				Model:    comp.Model,
				Provider: "pulser",
				Success:  true,
			}
		}
		g.logger.WarnContext(ctx, "cli fallback failed", slog.String("error", err.Error()))
		g.metrics.RecordGeneration(ctx, "pulser", "cli", false)
		if transportErr == nil {
			return Result{
				Model:    g.cli.Model(),
				Provider: "pulser",
				Success:  false,
				Error:    errorDetail(err),
			}
		}
	}

	// Transport failures surface their own diagnostic so callers see the raw
	// response body or subprocess stderr.
	if transportErr != nil {
		return Result{
			Model:    model,
			Provider: provider,
			Success:  false,
			Error:    errorDetail(transportErr),
		}
	}

	g.logger.ErrorContext(ctx, "no generation tier available", slog.String("provider", provider))
	g.metrics.RecordGeneration(ctx, "fallback", "apology", false)
	return Result{
		Content:  Apology,
		Model:    "fallback",
		Provider: "fallback",
		Success:  false,
		Error:    "No LLM providers available",
	}
}

// errorDetail extracts the diagnostic text carried by a transport error.
func errorDetail(err error) string {
	if pe, ok := err.(*errors.PulserError); ok && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

func completionModel(comp *Completion, fallback string) string {
	if comp != nil && comp.Model != "" {
		return comp.Model
	}
	return fallback
}
