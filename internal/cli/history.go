package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past publish runs",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.HistoryEnabled() {
		return nil, fmt.Errorf("run history is disabled in the configuration")
	}
	return history.Open(config.ExpandPath(cfg.Settings.History.Path))
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(context.Background(), limit)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(runs)
			}

			t := NewTable("RUN", "STARTED", "DURATION", "CREATED", "UPDATED", "SKIPPED", "FAILED")
			for _, run := range runs {
				t.AddRow(
					run.ID,
					run.StartedAt.Format(time.RFC3339),
					run.FinishedAt.Sub(run.StartedAt).String(),
					fmt.Sprintf("%d", run.Counts["created"]),
					fmt.Sprintf("%d", run.Counts["updated"]),
					fmt.Sprintf("%d", run.Counts["skipped_duplicate"]+run.Counts["skipped_user"]),
					fmt.Sprintf("%d", run.Counts["failed"]),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's per-alert records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			run, records, err := store.GetRun(context.Background(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(map[string]interface{}{"run": run, "records": records})
			}

			fmt.Printf("run %s (%s), started %s\n\n",
				run.ID, run.Publisher, run.StartedAt.Format(time.RFC3339))

			t := NewTable("ALERT", "FINGERPRINT", "RULE", "STATUS", "TICKET")
			for _, rec := range records {
				ref := rec.TicketID
				if rec.Error != "" {
					ref = rec.Error
				}
				t.AddRow(
					truncate(rec.AlertName, 40),
					rec.Fingerprint,
					rec.Rule,
					formatRecordStatus(rec.Status),
					truncate(ref, 50),
				)
			}
			t.Render()
			return nil
		},
	}
}
