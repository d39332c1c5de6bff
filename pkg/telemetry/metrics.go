package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RouterMetrics tracks classification, generation, and persistence outcomes
// for production monitoring.
type RouterMetrics struct {
	// classifications counts routing decisions by agent and match method.
	classifications metric.Int64Counter

	// generations counts generation attempts by provider, tier, and outcome.
	generations metric.Int64Counter

	// persistenceErrors counts context records that could not be written or read.
	persistenceErrors metric.Int64Counter
}

// NewRouterMetrics creates a metrics tracker on the global meter provider.
func NewRouterMetrics() (*RouterMetrics, error) {
	meter := otel.Meter("pulser/router")

	classifications, err := meter.Int64Counter(
		"pulser.router.classifications",
		metric.WithDescription("Routing decisions by agent and match method"),
	)
	if err != nil {
		return nil, err
	}

	generations, err := meter.Int64Counter(
		"pulser.router.generations",
		metric.WithDescription("Generation attempts by provider, tier, and outcome"),
	)
	if err != nil {
		return nil, err
	}

	persistenceErrors, err := meter.Int64Counter(
		"pulser.router.persistence_errors",
		metric.WithDescription("Context records that failed to persist or parse"),
	)
	if err != nil {
		return nil, err
	}

	return &RouterMetrics{
		classifications:   classifications,
		generations:       generations,
		persistenceErrors: persistenceErrors,
	}, nil
}

// RecordClassification counts a routing decision.
// Method is one of: explicit, pattern, trigger, default.
func (rm *RouterMetrics) RecordClassification(ctx context.Context, agent, method string) {
	if rm == nil {
		return
	}
	rm.classifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.String("method", method),
		),
	)
}

// RecordGeneration counts one generation attempt outcome.
// Tier is one of: provider, cli, apology.
func (rm *RouterMetrics) RecordGeneration(ctx context.Context, provider, tier string, success bool) {
	if rm == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	rm.generations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("tier", tier),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordPersistenceError counts a failed context store operation.
// Op is one of: append, read.
func (rm *RouterMetrics) RecordPersistenceError(ctx context.Context, op string) {
	if rm == nil {
		return
	}
	rm.persistenceErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
		),
	)
}
