// Package runs implements the run-ledger inspection command, rendering a
// tenant's recent ingestion runs as a table (SPEC_FULL.md §6/§11.4),
// adapted from the teacher's table-rendering cobra subcommands.
package runs

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/store"
)

// defaultLimit bounds how many runs are listed when --limit isn't given.
const defaultLimit = 20

// openStoreFunc opens the store for the duration of one command invocation;
// injected from cmd/root.go so this package doesn't need its own viper
// wiring for database credentials.
type openStoreFunc func(ctx context.Context) (*store.DB, error)

// Command builds the "runs" command tree.
func Command(openStore openStoreFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the ingestion run ledger",
	}
	cmd.AddCommand(listCommand(openStore))
	return cmd
}

func listCommand(openStore openStoreFunc) *cobra.Command {
	var tenantID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}

			ctx := cmd.Context()
			db, err := openStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to store: %w", err)
			}
			defer db.Close()

			recent, err := db.Runs.ListRecent(ctx, tenantID, limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if len(recent) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			renderRuns(os.Stdout, recent)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID to list runs for")
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum number of runs to list")
	return cmd
}

// renderRuns writes a table of runs to w, one row per run, newest first.
func renderRuns(w *os.File, runs []*domain.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Run ID", "Type", "Status", "Started", "Duration (ms)", "Found", "Written", "Error"})

	for _, run := range runs {
		started := "-"
		if run.StartedAt != nil {
			started = run.StartedAt.Format("2006-01-02 15:04:05")
		}

		found := run.Counters.Found
		written := run.Counters.Added + run.Counters.Updated

		errCell := run.Error
		if errCell == "" {
			errCell = run.SkipReason
		}

		t.AppendRow(table.Row{
			run.ID,
			run.Type,
			run.Status,
			started,
			run.DurationMs,
			found,
			written,
			errCell,
		})
	}

	t.Render()
}
