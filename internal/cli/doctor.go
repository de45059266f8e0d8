package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type doctorCheck struct {
	name string
	err  error
}

func newDoctorCmd() *cobra.Command {
	var publisherName string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Long: `doctor validates the configuration file, then verifies that both the
Grafana API and the configured publisher are reachable with the provided
credentials.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var checks []doctorCheck

			cfg, err := loadConfig()
			checks = append(checks, doctorCheck{"configuration", err})
			if err != nil {
				return renderChecks(checks)
			}
			log := newLogger(cfg)

			p, err := buildPipeline(cfg, publisherName, log)
			checks = append(checks, doctorCheck{"publisher " + publisherName, err})

			if p != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()

				checks = append(checks, doctorCheck{"grafana API", p.grafana.Ping(ctx)})
				checks = append(checks, doctorCheck{"clickup API", p.clickup.Ping(ctx)})

				_, err = p.cache.Fields(ctx, p.cacheKey, p.clickup.ListCustomFields)
				checks = append(checks, doctorCheck{"custom field schema", err})
			}

			return renderChecks(checks)
		},
	}

	cmd.Flags().StringVar(&publisherName, "publisher", "clickup", "target publisher")
	return cmd
}

func renderChecks(checks []doctorCheck) error {
	t := NewTable("CHECK", "RESULT")
	failures := 0
	for _, c := range checks {
		result := "[+] ok"
		if c.err != nil {
			result = "[-] " + c.err.Error()
			failures++
		}
		t.AddRow(c.name, truncate(result, 80))
	}
	t.Render()

	if failures > 0 {
		return fmt.Errorf("%d checks failed", failures)
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
