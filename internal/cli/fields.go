package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFieldsCmd() *cobra.Command {
	var refresh bool
	var publisherName string

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Show the publisher's custom field schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			p, err := buildPipeline(cfg, publisherName, log)
			if err != nil {
				return err
			}

			if refresh {
				p.cache.Invalidate(p.cacheKey)
			}

			schemas, err := p.cache.Fields(context.Background(), p.cacheKey, p.clickup.ListCustomFields)
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(schemas)
			}

			t := NewTable("ID", "NAME", "TYPE", "OPTIONS")
			for _, fs := range schemas {
				options := ""
				if fs.HasOptions() {
					labels := make([]string, 0, len(fs.Options))
					for _, o := range fs.Options {
						labels = append(labels, o.Label)
					}
					options = truncate(strings.Join(labels, ", "), 60)
				}
				t.AddRow(fs.ID, fs.Name, fs.Type, options)
			}
			t.Render()
			fmt.Printf("\n%d custom fields\n", len(schemas))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached schema and refetch")
	cmd.Flags().StringVar(&publisherName, "publisher", "clickup", "target publisher")
	return cmd
}
