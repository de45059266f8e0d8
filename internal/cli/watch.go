package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jStrider/grafana-publisher/internal/publisher"
	"github.com/jStrider/grafana-publisher/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var schedule, listen, publisherName string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run publish on a schedule with a status server",
		Long: `watch runs the publish pipeline on a cron schedule until interrupted.
A small HTTP server exposes /healthz, /status and Prometheus /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			// Rebuilt per run so every run gets a fresh schema snapshot and
			// open-ticket list.
			run := func(ctx context.Context) (*publisher.BatchReport, error) {
				p, err := buildPipeline(cfg, publisherName, log)
				if err != nil {
					return nil, err
				}
				report, err := p.orchestrator.Run(ctx, publisher.Options{})
				if err != nil {
					return nil, err
				}
				if cfg.HistoryEnabled() {
					saveHistory(cfg, report, log)
				}
				return report, nil
			}

			daemon, err := watch.New(schedule, listen, run, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return daemon.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "*/5 * * * *", "cron schedule for publish runs")
	cmd.Flags().StringVar(&listen, "listen", ":8990", "status server listen address")
	cmd.Flags().StringVar(&publisherName, "publisher", "clickup", "target publisher")

	return cmd
}
