package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/schema"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the custom field schema cache",
	}
	cmd.AddCommand(newCacheStatusCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func openCache(publisherName string) (*schema.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cuCfg, ok := cfg.Publisher(publisherName)
	if !ok {
		return nil, fmt.Errorf("publisher %q is not configured or not enabled", publisherName)
	}
	return schema.NewCache(
		config.ExpandPath(cuCfg.Cache.Path),
		cuCfg.Cache.TTL.Std(),
		cuCfg.CacheEnabled(),
		newLogger(cfg),
	), nil
}

func newCacheStatusCmd() *cobra.Command {
	var publisherName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cached schema entries and their age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(publisherName)
			if err != nil {
				return err
			}

			statuses := cache.Status()
			if getOutputFormat() != "table" {
				return printOutput(statuses)
			}

			if len(statuses) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}

			t := NewTable("KEY", "FIELDS", "FETCHED", "STATE")
			for _, s := range statuses {
				state := "fresh"
				if s.Expired {
					state = "expired"
				}
				t.AddRow(
					s.Key,
					fmt.Sprintf("%d", s.Fields),
					s.FetchedAt.Format(time.RFC3339),
					state,
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&publisherName, "publisher", "clickup", "target publisher")
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	var publisherName string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached schema entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(publisherName)
			if err != nil {
				return err
			}
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Println("Cache cleared.")
			return nil
		},
	}

	cmd.Flags().StringVar(&publisherName, "publisher", "clickup", "target publisher")
	return cmd
}
