package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pulseops/pulser/pkg/config"
	"github.com/pulseops/pulser/pkg/llm"
	"github.com/pulseops/pulser/pkg/memory"
	"github.com/pulseops/pulser/pkg/orchestrator"
	"github.com/pulseops/pulser/pkg/resilience"
	"github.com/pulseops/pulser/pkg/runner"
	"github.com/pulseops/pulser/pkg/telemetry"
	"github.com/pulseops/pulser/providers/claude"
	"github.com/pulseops/pulser/providers/openaicompat"
)

// buildRouter assembles the orchestrator from configuration. The returned
// cleanup flushes telemetry and closes the context store and log file.
func buildRouter(cfg *config.Config) (*orchestrator.Orchestrator, func(context.Context), error) {
	output, closeLog, err := telemetry.OpenLogOutput(cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	logger := telemetry.ConfigureSlog(output, cfg.Log.Level, cfg.Log.Format)

	var shutdown telemetry.ShutdownFunc
	if cfg.Telemetry.Enabled {
		shutdown, err = telemetry.Init("pulser", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.Endpoint,
			OTLPInsecure: cfg.Telemetry.Insecure,
		})
		if err != nil {
			_ = closeLog()
			return nil, nil, err
		}
	}

	metrics, err := telemetry.NewRouterMetrics()
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}

	registry, err := buildAgentRegistry(cfg)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}

	generator := buildGenerator(cfg, metrics, logger)

	store, closeStore, err := buildContextStore(cfg)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}

	router := orchestrator.New(
		orchestrator.WithRegistry(registry),
		orchestrator.WithGenerator(generator),
		orchestrator.WithStore(store),
		orchestrator.WithShogunRunner(runner.NewShogunRunner(
			runner.WithShogunBinary(cfg.Runner.Shogun),
			runner.WithShogunLogger(logger),
		)),
		orchestrator.WithTaskRunner(runner.NewTaskRunner(
			runner.WithTaskBinary(cfg.Runner.Pulser),
			runner.WithTaskLogger(logger),
		)),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	)

	cleanup := func(ctx context.Context) {
		if shutdown != nil {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}
		_ = closeStore()
		_ = closeLog()
	}
	return router, cleanup, nil
}

// buildGenerator wires every known provider transport: the Claude provider
// with its CLI-first transport, and the OpenAI-compatible chat transport for
// the rest of the table. The configured model only overrides the selected
// default provider.
func buildGenerator(cfg *config.Config, metrics *telemetry.RouterMetrics, logger *slog.Logger) *llm.Generator {
	providers := llm.DefaultRegistry()

	transport := func(key string) llm.Provider {
		pc, _ := providers.Lookup(key)
		if cfg.LLM.Model != "" && key == cfg.LLM.Provider {
			pc.DefaultModel = cfg.LLM.Model
		}
		if key == llm.ProviderClaude {
			var opts []claude.Option
			if cfg.LLM.Script != "" {
				opts = append(opts, claude.WithContextScript(cfg.LLM.Script))
			}
			return claude.NewFromConfig(pc, opts...)
		}
		return openaicompat.NewFromConfig(pc)
	}

	return llm.NewGenerator(providers,
		llm.WithDefaultProvider(cfg.LLM.Provider),
		llm.WithTimeout(time.Duration(cfg.LLM.Timeout)*time.Second),
		llm.WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(cfg.LLM.Attempts)),
		llm.WithTransport(llm.ProviderClaude, transport(llm.ProviderClaude)),
		llm.WithTransport(llm.ProviderOpenAI, transport(llm.ProviderOpenAI)),
		llm.WithTransport(llm.ProviderMistral, transport(llm.ProviderMistral)),
		llm.WithTransport(llm.ProviderDeepSeekR1, transport(llm.ProviderDeepSeekR1)),
		llm.WithTransport(llm.ProviderLocal, transport(llm.ProviderLocal)),
		llm.WithCLIFallback(llm.NewCLIFallback(llm.WithBinary(cfg.Runner.Pulser))),
		llm.WithMetrics(metrics),
		llm.WithLogger(logger),
	)
}

func buildContextStore(cfg *config.Config) (memory.ContextStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Context.Backend {
	case "", "file":
		dir := cfg.Context.Dir
		if dir == "" {
			var err error
			dir, err = memory.DefaultDir()
			if err != nil {
				return nil, nil, err
			}
		}
		store, err := memory.NewFileStore(dir, memory.WithMaxRecords(cfg.Context.Retention))
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case "sqlite":
		path := cfg.Context.Database
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(home, ".pulser", "context.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		store, err := memory.NewSQLiteStore(path, memory.WithSQLiteMaxRecords(cfg.Context.Retention))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "inmemory":
		return memory.NewBoundedInMemoryStore(cfg.Context.Retention), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown context backend %q", cfg.Context.Backend)
	}
}
