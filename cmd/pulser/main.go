package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/pulseops/pulser/pkg/agent"
	"github.com/pulseops/pulser/pkg/config"
	"github.com/pulseops/pulser/pkg/llm"
)

const version = "dev"

type globalFlags struct {
	ConfigPath string
	Sets       []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.LoadWithOverrides(global.ConfigPath, global.Sets)
	if err != nil {
		fatal(err)
	}

	switch args[0] {
	case "ask":
		runAsk(ctx, global, cfg, args[1:])
	case "agents":
		runAgents(global, cfg, args[1:])
	case "providers":
		runProviders(global, args[1:])
	case "context":
		runContext(ctx, global, cfg, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println(version)
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.Sets = append(flags.Sets, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.Sets = append(flags.Sets, strings.TrimPrefix(arg, "--set="))
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// runAsk routes one message. The message is every positional word joined with
// spaces, so both `pulser ask "deploy this"` and `pulser ask deploy this`
// work, and flags may appear before or after the message.
func runAsk(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	var (
		agentKey   string
		exitStatus bool
		words      []string
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--agent":
			if i+1 >= len(args) {
				fatal(fmt.Errorf("missing value for --agent"))
			}
			agentKey = args[i+1]
			i++
		case strings.HasPrefix(arg, "--agent="):
			agentKey = strings.TrimPrefix(arg, "--agent=")
		case arg == "--exit-status":
			exitStatus = true
		case strings.HasPrefix(arg, "-"):
			fatal(fmt.Errorf("unknown ask flag %q", arg))
		default:
			words = append(words, arg)
		}
	}
	message := strings.TrimSpace(strings.Join(words, " "))
	if message == "" {
		fatal(fmt.Errorf("usage: pulser ask <message> [--agent <key>]"))
	}

	router, cleanup, err := buildRouter(cfg)
	if err != nil {
		fatal(err)
	}
	defer cleanup(ctx)

	resp := router.Handle(ctx, message, agentKey)

	if global.JSON {
		printJSON(resp)
	} else {
		if resp.Message != "" {
			fmt.Println(resp.Message)
		}
		if resp.Automation != nil {
			printJSON(json.RawMessage(resp.Automation))
		}
		if resp.Task != nil {
			printJSON(json.RawMessage(resp.Task))
		}
	}

	if exitStatus && !responseSucceeded(resp.Automation, resp.Task) {
		cleanup(ctx)
		os.Exit(1)
	}
}

// responseSucceeded inspects a delegated payload for an explicit failure.
// Responses without a delegated payload always count as success, matching the
// legacy router which reported generation fallbacks as normal replies.
func responseSucceeded(payloads ...json.RawMessage) bool {
	for _, payload := range payloads {
		if payload == nil {
			continue
		}
		var body struct {
			Success *bool  `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			continue
		}
		if body.Error != "" {
			return false
		}
		if body.Success != nil && !*body.Success {
			return false
		}
	}
	return true
}

func runAgents(global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(fmt.Errorf("usage: pulser agents list"))
	}
	ensureNoArgs(args[1:])

	registry, err := buildAgentRegistry(cfg)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(registry.All())
		return
	}
	writer := newTabWriter()
	writeRow(writer, "AGENT", "FALLBACK", "TRIGGERS", "DESCRIPTION")
	for _, desc := range registry.All() {
		writeRow(writer, desc.Key, desc.Fallback, strings.Join(desc.Triggers, ","), desc.Description)
	}
	_ = writer.Flush()
}

func runProviders(global globalFlags, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(fmt.Errorf("usage: pulser providers list"))
	}
	ensureNoArgs(args[1:])

	registry := llm.DefaultRegistry()
	keys := registry.Keys()
	sort.Strings(keys)

	if global.JSON {
		configs := make([]llm.ProviderConfig, 0, len(keys))
		for _, key := range keys {
			cfg, _ := registry.Lookup(key)
			configs = append(configs, cfg)
		}
		printJSON(configs)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "PROVIDER", "MODEL", "ENDPOINT", "CREDENTIAL")
	for _, key := range keys {
		cfg, _ := registry.Lookup(key)
		writeRow(writer, cfg.Key, cfg.DefaultModel, cfg.Endpoint, cfg.APIKeyEnv)
	}
	_ = writer.Flush()
}

func runContext(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "recent" {
		fatal(fmt.Errorf("usage: pulser context recent [--limit N]"))
	}

	limit := 10
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--limit":
			if i+1 >= len(rest) {
				fatal(fmt.Errorf("missing value for --limit"))
			}
			if _, err := fmt.Sscan(rest[i+1], &limit); err != nil {
				fatal(fmt.Errorf("invalid --limit %q", rest[i+1]))
			}
			i++
		case strings.HasPrefix(arg, "--limit="):
			if _, err := fmt.Sscan(strings.TrimPrefix(arg, "--limit="), &limit); err != nil {
				fatal(fmt.Errorf("invalid --limit %q", arg))
			}
		default:
			fatal(fmt.Errorf("unknown context flag %q", arg))
		}
	}

	store, closeStore, err := buildContextStore(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	records, err := store.Recent(ctx, limit)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(records)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "TIMESTAMP", "AGENT", "MESSAGE")
	for _, rec := range records {
		writeRow(writer, rec.Timestamp, rec.Agent, truncate(rec.Message, 80))
	}
	_ = writer.Flush()
}

func buildAgentRegistry(cfg *config.Config) (*agent.Registry, error) {
	if cfg.Agents.Manifest != "" {
		return agent.LoadManifest(cfg.Agents.Manifest)
	}
	return agent.DefaultRegistry(), nil
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncate(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

func printUsage() {
	fmt.Print(`Pulser message router

Usage:
  pulser [global flags] <command> [args]

Global flags:
  --config <path>      Path to config YAML
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  ask <message> [--agent <key>] [--exit-status]
  agents list
  providers list
  context recent [--limit N]
  version
`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
