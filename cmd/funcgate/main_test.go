package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jdziat/funcgate/internal/config"
	"github.com/jdziat/funcgate/internal/terminal"
	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/storage"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testApp() *app {
	return &app{
		cfg:         config.Default(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		newTerminal: func() *terminal.Terminal { return terminal.New() },
	}
}

// =============================================================================
// Root
// =============================================================================

func TestRoot_Version(t *testing.T) {
	out, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev (built from source)")
}

func TestRoot_ConfigErrors(t *testing.T) {
	_, err := run(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "functions")
	assert.Error(t, err)

	_, err = run(t, "", "--log-format", "xml", "functions")
	assert.Error(t, err)
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())

	inner := io.ErrUnexpectedEOF
	err := &ExitError{Code: 1, Err: inner}
	assert.Equal(t, inner.Error(), err.Error())
	assert.ErrorIs(t, err, inner)
}

// =============================================================================
// functions
// =============================================================================

func TestFunctions_Text(t *testing.T) {
	out, err := run(t, "", "functions")
	require.NoError(t, err)
	assert.Contains(t, out, "version()\n")
	assert.Contains(t, out, "symbol_info(symbol)\n")
	assert.Contains(t, out, "copy_rates_from(symbol, timeframe, date_from, count)\n")
}

func TestFunctions_JSON(t *testing.T) {
	out, err := run(t, "", "functions", "-o", "json")
	require.NoError(t, err)

	var docs []functionDoc
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 32)
	for _, d := range docs {
		if d.Name == "symbol_info" {
			assert.Equal(t, []string{"symbol"}, d.Params)
			assert.Equal(t, "Symbol properties.", d.Description)
		}
	}
}

func TestFunctions_YAML(t *testing.T) {
	out, err := run(t, "", "ls", "-o", "yaml")
	require.NoError(t, err)

	var docs []functionDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &docs))
	assert.Len(t, docs, 32)
}

func TestFunctions_InvalidFormat(t *testing.T) {
	_, err := run(t, "", "functions", "-o", "xml")
	assert.ErrorContains(t, err, "invalid output format")
}

// =============================================================================
// call
// =============================================================================

func TestCall_Envelopes(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
		fails bool
	}{
		{"no params", []string{"call", "version"}, "", `{"result":[500,4000,"15 Mar 2024"]}`, false},
		{"positional", []string{"call", "symbol_info_tick", `["NOPE"]`}, "", `{"result":null}`, false},
		{"named", []string{"call", "symbols_total", `{}`}, "", `{"result":5}`, false},
		{"stdin", []string{"call", "symbol_select", "-"}, `{"symbol":"XAUUSD"}`, `{"result":true}`, false},
		{"not found", []string{"call", "missing"}, "", `{"error":"Function 'missing' not found"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, tt.args...)
			assert.Equal(t, tt.want+"\n", out)
			if !tt.fails {
				assert.NoError(t, err)
				return
			}
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 1, exitErr.Code)
		})
	}
}

func TestCall_InvalidParams(t *testing.T) {
	out, err := run(t, "", "call", "version", "{not json")
	assert.ErrorContains(t, err, "invalid params")
	assert.Empty(t, out)
}

func TestCall_RequiresName(t *testing.T) {
	_, err := run(t, "", "call")
	assert.Error(t, err)
}

// =============================================================================
// serve
// =============================================================================

func TestServe_ShutsDownOnCancel(t *testing.T) {
	a := testApp()
	a.cfg.Server.Addr = "127.0.0.1:0"
	a.cfg.Journal.Enabled = true
	a.cfg.Journal.DSN = filepath.Join(t.TempDir(), "calls.db")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}

	_, err := os.Stat(a.cfg.Journal.DSN)
	assert.NoError(t, err)
}

func TestServe_RefusedTerminal(t *testing.T) {
	a := testApp()
	a.newTerminal = func() *terminal.Terminal { return terminal.New(terminal.WithRefuseConnections()) }

	err := a.serve(context.Background())
	assert.ErrorContains(t, err, "initialize registry")
}

func TestServe_FlagOverrides(t *testing.T) {
	a := testApp()
	f := &serveFlags{}
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	f.bind(flags)
	require.NoError(t, flags.Parse([]string{
		"--addr", "127.0.0.1:6000",
		"--call-timeout", "5s",
		"--rate-limit",
		"--mcp=false",
	}))
	require.NoError(t, f.apply(flags, a))

	assert.Equal(t, "127.0.0.1:6000", a.cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, a.cfg.Server.CallTimeout)
	assert.True(t, a.cfg.Server.RateLimit.Enabled)
	assert.False(t, a.cfg.MCP.Enabled)
	// Unset flags keep the configured values.
	assert.True(t, a.cfg.Metrics.Enabled)
	assert.Equal(t, 64, a.cfg.Server.MaxInFlight)
}

func TestJournalPool(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, storage.DefaultPoolConfig(), journalPool(cfg.Journal.Pool))

	cfg.Journal.Pool.MaxOpenConns = 40
	cfg.Journal.Pool.ConnMaxIdleTime = 10 * time.Second
	got := journalPool(cfg.Journal.Pool)
	assert.Equal(t, 40, got.MaxOpenConns)
	assert.Equal(t, 5, got.MaxIdleConns)
	assert.Equal(t, 10*time.Second, got.ConnMaxIdleTime)
}

func TestServe_InvalidOverride(t *testing.T) {
	_, err := run(t, "", "serve", "--max-in-flight=-1")
	assert.Error(t, err)
}

// =============================================================================
// journal
// =============================================================================

func seedJournal(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "calls.db")
	store, err := storage.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	records := []*core.CallRecord{
		{ID: "1", RequestID: "req-1", Function: "version", Convention: "empty", Outcome: core.OutcomeOK, DurationMicros: 120},
		{ID: "2", RequestID: "req-2", Function: "symbol_info", Convention: "named", Fallback: true, Outcome: core.OutcomeOK, DurationMicros: 80},
		{ID: "3", RequestID: "req-3", Function: "missing", Convention: "empty", Outcome: core.OutcomeNotFound, Error: "Function 'missing' not found"},
	}
	for _, r := range records {
		require.NoError(t, store.Record(context.Background(), r))
	}
	return dsn
}

func TestJournal_Text(t *testing.T) {
	dsn := seedJournal(t)

	out, err := run(t, "", "journal", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "FUNCTION")
	assert.Contains(t, out, "named (fallback)")
	assert.Contains(t, out, "Function 'missing' not found")
	assert.Contains(t, out, "3 of 3 calls")
}

func TestJournal_StatsText(t *testing.T) {
	dsn := seedJournal(t)

	out, err := run(t, "", "journal", "stats", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "FAILURES")

	var missing string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "missing") {
			missing = line
		}
	}
	require.NotEmpty(t, missing)
	assert.Equal(t, []string{"missing", "1", "1"}, strings.FieldsFunc(missing, func(r rune) bool {
		return r == '│' || r == ' '
	}))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "LONGER"}, [][]string{{"wide value", "x"}})
	lines := strings.Split(out, "\n")

	// Header, separator, one row and the top and bottom borders.
	require.Len(t, lines, 5)
	for _, line := range lines[1:] {
		assert.Equal(t, lipgloss.Width(lines[0]), lipgloss.Width(line))
	}
	assert.Contains(t, out, "wide value")
}

func TestJournal_Filters(t *testing.T) {
	dsn := seedJournal(t)

	out, err := run(t, "", "journal", "--dsn", dsn, "--failed", "-o", "json")
	require.NoError(t, err)

	var entries []journalEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "missing", entries[0].Function)
	assert.Equal(t, "not_found", entries[0].Outcome)

	out, err = run(t, "", "journal", "--dsn", dsn, "--function", "version", "-o", "yaml")
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, "120µs", entries[0].Duration)
}

func TestJournal_Stats(t *testing.T) {
	dsn := seedJournal(t)

	out, err := run(t, "", "journal", "stats", "--dsn", dsn, "-o", "json")
	require.NoError(t, err)

	var rows []journalStats
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Equal(t, []journalStats{
		{Function: "missing", Calls: 1, Failures: 1},
		{Function: "symbol_info", Calls: 1, Failures: 0},
		{Function: "version", Calls: 1, Failures: 0},
	}, rows)
}
