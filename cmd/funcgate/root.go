package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/jdziat/funcgate/internal/config"
	"github.com/jdziat/funcgate/internal/logging"
	"github.com/jdziat/funcgate/internal/terminal"
	"github.com/jdziat/funcgate/pkg/canon"
	"github.com/jdziat/funcgate/pkg/gateway"
	"github.com/jdziat/funcgate/pkg/registry"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

const tracerName = "github.com/jdziat/funcgate"

// app holds state shared by every subcommand.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    config.Config
	logger *slog.Logger

	// newTerminal builds the terminal served by the registry.
	newTerminal func() *terminal.Terminal
}

func newRootCmd() *cobra.Command {
	a := &app{newTerminal: func() *terminal.Terminal { return terminal.New() }}

	root := &cobra.Command{
		Use:   "funcgate",
		Short: "Expose named functions as JSON endpoints",
		Long: `funcgate exposes the functions of a demo trading terminal as JSON
endpoints. Every call answers with exactly one of {"result": ...} or
{"error": "..."}.

Examples:
  funcgate serve --addr :5000       Serve /api/{name}, /mcp and /metrics
  funcgate functions                List callable functions
  funcgate call symbol_info '["EURUSD"]'
  funcgate journal --failed         Show recent failed calls`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (text, json, logfmt)")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newFunctionsCmd(a))
	root.AddCommand(newCallCmd(a))
	root.AddCommand(newJournalCmd(a))
	return root
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// load reads the configuration, applies the global flags and builds the
// logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// runtime is an initialized registry and the gateway over it.
type runtime struct {
	registry *registry.Registry
	gateway  *gateway.Gateway
}

// start connects the terminal and builds the gateway.
func (a *app) start(ctx context.Context) (*runtime, error) {
	reg, err := terminal.NewRegistry(a.newTerminal())
	if err != nil {
		return nil, err
	}
	if err := reg.Init(ctx); err != nil {
		return nil, fmt.Errorf("initialize registry: %w", err)
	}

	gw := gateway.New(reg,
		gateway.WithCanonicalizer(canon.New(canon.WithMaxDepth(a.cfg.Canon.MaxDepth))),
		gateway.WithLogger(a.logger),
		gateway.WithTracer(otel.Tracer(tracerName)),
	)
	return &runtime{registry: reg, gateway: gw}, nil
}

func (r *runtime) stop(ctx context.Context) error {
	return r.registry.Shutdown(ctx)
}
