package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jdziat/funcgate/pkg/core"
	"github.com/jdziat/funcgate/pkg/storage"
)

type journalFlags struct {
	dsn       string
	format    string
	limit     int
	function  string
	outcome   string
	requestID string
	failed    bool
	since     time.Duration
}

type journalEntry struct {
	ID         string    `json:"id" yaml:"id"`
	RequestID  string    `json:"request_id" yaml:"request_id"`
	Function   string    `json:"function" yaml:"function"`
	Convention string    `json:"convention" yaml:"convention"`
	Fallback   bool      `json:"fallback" yaml:"fallback"`
	Outcome    string    `json:"outcome" yaml:"outcome"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   string    `json:"duration" yaml:"duration"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

type journalStats struct {
	Function string `json:"function" yaml:"function"`
	Calls    int64  `json:"calls" yaml:"calls"`
	Failures int64  `json:"failures" yaml:"failures"`
}

func newJournalCmd(a *app) *cobra.Command {
	f := &journalFlags{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(f.format); err != nil {
				return err
			}
			store, err := f.open(cmd, a)
			if err != nil {
				return err
			}
			defer store.Close()

			filter := core.CallFilter{
				Function:   f.function,
				Outcome:    core.Outcome(f.outcome),
				RequestID:  f.requestID,
				FailedOnly: f.failed,
				Limit:      f.limit,
			}
			if f.since > 0 {
				filter.Since = time.Now().Add(-f.since)
			}
			records, total, err := store.Search(cmd.Context(), filter)
			if err != nil {
				return err
			}

			entries := make([]journalEntry, 0, len(records))
			for _, r := range records {
				entries = append(entries, journalEntry{
					ID:         r.ID,
					RequestID:  r.RequestID,
					Function:   r.Function,
					Convention: r.Convention,
					Fallback:   r.Fallback,
					Outcome:    string(r.Outcome),
					Error:      r.Error,
					Duration:   (time.Duration(r.DurationMicros) * time.Microsecond).String(),
					CreatedAt:  r.CreatedAt.UTC(),
				})
			}

			out := cmd.OutOrStdout()
			if f.format != formatText {
				return encode(out, f.format, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				convention := e.Convention
				if e.Fallback {
					convention += " (fallback)"
				}
				rows = append(rows, []string{
					e.CreatedAt.Format(time.RFC3339), e.Function, convention, e.Outcome, e.Duration, e.Error,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"TIME", "FUNCTION", "CONVENTION", "OUTCOME", "DURATION", "ERROR"}, rows))
			fmt.Fprintf(out, "%d of %d calls\n", len(entries), total)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.dsn, "dsn", "", "journal database (defaults to journal.dsn from the config)")
	pf.StringVarP(&f.format, "output", "o", formatText, "output format (text, json, yaml)")

	flags := cmd.Flags()
	flags.IntVar(&f.limit, "limit", 20, "maximum records to show")
	flags.StringVar(&f.function, "function", "", "only calls to this function")
	flags.StringVar(&f.outcome, "outcome", "", "only calls with this outcome")
	flags.StringVar(&f.requestID, "request-id", "", "only the call with this request id")
	flags.BoolVar(&f.failed, "failed", false, "only failed calls")
	flags.DurationVar(&f.since, "since", 0, "only calls newer than this")

	cmd.AddCommand(newJournalStatsCmd(a, f))
	return cmd
}

func newJournalStatsCmd(a *app, f *journalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show call and failure counts per function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(f.format); err != nil {
				return err
			}
			store, err := f.open(cmd, a)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]journalStats, 0, len(stats))
			for _, s := range stats {
				rows = append(rows, journalStats{Function: s.Function, Calls: s.Calls, Failures: s.Failures})
			}

			out := cmd.OutOrStdout()
			if f.format != formatText {
				return encode(out, f.format, rows)
			}
			cells := make([][]string, 0, len(rows))
			for _, r := range rows {
				cells = append(cells, []string{
					r.Function, strconv.FormatInt(r.Calls, 10), strconv.FormatInt(r.Failures, 10),
				})
			}
			_, err = fmt.Fprintln(out, renderTable([]string{"FUNCTION", "CALLS", "FAILURES"}, cells))
			return err
		},
	}
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Render()
}

func (f *journalFlags) open(cmd *cobra.Command, a *app) (*storage.GormStorage, error) {
	dsn := a.cfg.Journal.DSN
	if f.dsn != "" {
		dsn = f.dsn
	}
	return storage.Open(cmd.Context(), dsn, storage.WithPool(journalPool(a.cfg.Journal.Pool)))
}
