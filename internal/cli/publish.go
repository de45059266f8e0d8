package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/history"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/publisher"
)

func newPublishCmd() *cobra.Command {
	var dryRun, interactive bool
	var publisherName string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Scrape alerts and publish them as tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			if cfg.Settings.Modes.DryRun {
				dryRun = true
			}
			if cfg.Settings.Modes.Interactive {
				interactive = true
			}

			p, err := buildPipeline(cfg, publisherName, log)
			if err != nil {
				return err
			}

			report, err := p.orchestrator.Run(context.Background(), publisher.Options{
				DryRun:      dryRun,
				Interactive: interactive,
				Confirm:     confirmOnTerminal,
			})
			if err != nil {
				return err
			}

			if cfg.HistoryEnabled() && !dryRun {
				saveHistory(cfg, report, log)
			}

			return printReport(report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify and dedup but do not create tickets")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "confirm each ticket before creating it")
	cmd.Flags().StringVar(&publisherName, "publisher", "clickup", "target publisher")

	return cmd
}

func confirmOnTerminal(title, description string) bool {
	fmt.Printf("\n%s\n%s\n", title, description)
	fmt.Print("Create this ticket? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func saveHistory(cfg *config.Config, report *publisher.BatchReport, log *logger.Logger) {
	store, err := history.Open(config.ExpandPath(cfg.Settings.History.Path))
	if err != nil {
		log.Warnf("cannot open history store: %v", err)
		return
	}
	defer store.Close()
	if err := store.SaveReport(context.Background(), report); err != nil {
		log.Warnf("cannot save run history: %v", err)
	}
}

func printReport(report *publisher.BatchReport) error {
	if getOutputFormat() != "table" {
		return printOutput(report)
	}

	t := NewTable("ALERT", "RULE", "PRIORITY", "STATUS", "TICKET")
	for _, rec := range report.Records {
		ref := rec.TicketURL
		if ref == "" {
			ref = rec.Error
		}
		t.AddRow(
			truncate(rec.AlertName, 40),
			rec.Rule,
			formatPriority(rec.Priority),
			formatRecordStatus(rec.Status),
			truncate(ref, 60),
		)
	}
	t.Render()

	fmt.Println()
	for status, n := range report.Counts() {
		fmt.Printf("%s: %d  ", status, n)
	}
	fmt.Println()

	if report.Count(publisher.StatusFailed) > 0 {
		return fmt.Errorf("%d alerts failed to publish", report.Count(publisher.StatusFailed))
	}
	return nil
}
