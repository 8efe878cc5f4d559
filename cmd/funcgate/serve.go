package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jdziat/funcgate/internal/config"
	"github.com/jdziat/funcgate/pkg/metrics"
	"github.com/jdziat/funcgate/pkg/schedule"
	"github.com/jdziat/funcgate/pkg/server"
	"github.com/jdziat/funcgate/pkg/storage"
)

type serveFlags struct {
	addr        string
	callTimeout time.Duration
	maxInFlight int
	rateLimit   bool
	journal     bool
	journalDSN  string
	metrics     bool
	mcp         bool
}

func newServeCmd(a *app) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve functions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.apply(cmd.Flags(), a); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

func (f *serveFlags) bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.addr, "addr", "", "listen address (default :5000)")
	flags.DurationVar(&f.callTimeout, "call-timeout", 0, "per-call deadline")
	flags.IntVar(&f.maxInFlight, "max-in-flight", 0, "maximum concurrent calls")
	flags.BoolVar(&f.rateLimit, "rate-limit", false, "enable per-client rate limiting")
	flags.BoolVar(&f.journal, "journal", false, "record every call in the journal")
	flags.StringVar(&f.journalDSN, "journal-dsn", "", "journal database (SQLite path or postgres:// URL)")
	flags.BoolVar(&f.metrics, "metrics", true, "serve Prometheus metrics on /metrics")
	flags.BoolVar(&f.mcp, "mcp", true, "serve the MCP endpoint on /mcp")
}

// apply copies explicitly set flags over the loaded configuration.
func (f *serveFlags) apply(flags *pflag.FlagSet, a *app) error {
	if flags.Changed("addr") {
		a.cfg.Server.Addr = f.addr
	}
	if flags.Changed("call-timeout") {
		a.cfg.Server.CallTimeout = f.callTimeout
	}
	if flags.Changed("max-in-flight") {
		a.cfg.Server.MaxInFlight = f.maxInFlight
	}
	if flags.Changed("rate-limit") {
		a.cfg.Server.RateLimit.Enabled = f.rateLimit
	}
	if flags.Changed("journal") {
		a.cfg.Journal.Enabled = f.journal
	}
	if flags.Changed("journal-dsn") {
		a.cfg.Journal.DSN = f.journalDSN
	}
	if flags.Changed("metrics") {
		a.cfg.Metrics.Enabled = f.metrics
	}
	if flags.Changed("mcp") {
		a.cfg.MCP.Enabled = f.mcp
	}
	return a.cfg.Validate()
}

// serve runs the HTTP server until ctx is cancelled, then disconnects the
// terminal and flushes the journal.
func (a *app) serve(ctx context.Context) (err error) {
	rt, err := a.start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := rt.stop(context.WithoutCancel(ctx)); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown registry: %w", stopErr))
		}
	}()

	cfg := a.cfg.Server
	opts := []server.Option{
		server.WithAddr(cfg.Addr),
		server.WithCallTimeout(cfg.CallTimeout),
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithMaxInFlight(cfg.MaxInFlight),
		server.WithLogger(a.logger),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, server.WithRateLimit(server.RateLimitConfig{
			Enabled: true,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		}))
	}
	if a.cfg.Metrics.Enabled {
		m := metrics.New()
		rt.gateway.OnCallFinish(m.ObserveCall)
		opts = append(opts, server.WithMetrics(m))
	}
	if a.cfg.MCP.Enabled {
		opts = append(opts, server.WithMCP())
	}

	if a.cfg.Journal.Enabled {
		store, err := storage.Open(ctx, a.cfg.Journal.DSN, storage.WithPool(journalPool(a.cfg.Journal.Pool)))
		if err != nil {
			return err
		}
		defer store.Close()

		sched, err := schedule.Parse(a.cfg.Journal.PruneSchedule)
		if err != nil {
			return err
		}
		journalCtx, cancelJournal := context.WithCancel(ctx)
		recorded := storage.NewRecorder(store, a.logger).Start(journalCtx, rt.gateway)
		defer func() {
			cancelJournal()
			<-recorded
		}()
		go storage.NewPruner(store, a.cfg.Journal.Retention, sched, a.logger).Run(journalCtx)

		a.logger.Info("call journal enabled", "retention", a.cfg.Journal.Retention)
	}

	srv, err := server.New(rt.gateway, opts...)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func journalPool(c config.PoolConfig) storage.PoolConfig {
	return storage.PoolConfig{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}
