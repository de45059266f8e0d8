// Package cli implements the grafana-publisher command tree.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/dedup"
	"github.com/jStrider/grafana-publisher/internal/fields"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/publisher"
	"github.com/jStrider/grafana-publisher/internal/rules"
	"github.com/jStrider/grafana-publisher/internal/schema"
	"github.com/jStrider/grafana-publisher/internal/templates"
	"github.com/jStrider/grafana-publisher/pkg/clickup"
	"github.com/jStrider/grafana-publisher/pkg/grafana"
)

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "grafana-publisher",
	Short: "Publish Grafana alerts as ClickUp tickets",
	Long: `grafana-publisher scrapes firing alerts from Grafana, classifies them
with ordered rules, renders ticket titles and descriptions from templates,
and creates or updates ClickUp tickets without producing duplicates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/grafana-publisher/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(newPublishCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newFieldsCmd())
	rootCmd.AddCommand(newRulesCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	viper.SetEnvPrefix("GRAFANA_PUBLISHER")
	viper.AutomaticEnv()
	viper.SetDefault("output", "table")
}

// configPath returns the config file to load: the --config flag if given,
// otherwise the first existing file among the conventional locations.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}

	candidates := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "grafana-publisher", "config.yaml"),
			filepath.Join(home, ".grafana-publisher", "config.yaml"),
		)
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file found, looked for %v (run 'grafana-publisher init')", candidates)
}

func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *logger.Logger {
	level := cfg.Settings.Logging.Level
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Config{
		Level:      level,
		Format:     cfg.Settings.Logging.Format,
		OutputPath: cfg.Settings.Logging.File,
	})
}

// pipeline bundles everything one publish run needs
type pipeline struct {
	orchestrator *publisher.Orchestrator
	cache        *schema.Cache
	grafana      *grafana.Client
	clickup      *clickup.Client
	cacheKey     string
}

// buildPipeline wires the full alert-to-ticket pipeline for one publisher
func buildPipeline(cfg *config.Config, publisherName string, log *logger.Logger) (*pipeline, error) {
	cuCfg, ok := cfg.Publisher(publisherName)
	if !ok {
		return nil, fmt.Errorf("publisher %q is not configured or not enabled", publisherName)
	}

	engine, err := rules.NewEngine(cfg.AlertRules, cfg.Settings.Defaults, log)
	if err != nil {
		return nil, err
	}
	renderer := templates.NewRenderer(cfg.Templates, log)
	mapper := fields.NewMapper(cuCfg.FieldMappings, cuCfg.RequiredFields, log)
	tracker := dedup.NewTracker(cfg.Settings.Deduplication, log)
	cache := schema.NewCache(
		config.ExpandPath(cuCfg.Cache.Path),
		cuCfg.Cache.TTL.Std(),
		cuCfg.CacheEnabled(),
		log,
	)

	grafanaClient := grafana.NewClient(&cfg.Grafana, log)
	clickupClient := clickup.NewClient(cuCfg, 30*time.Second)
	cacheKey := publisherName + "/" + cuCfg.ListID

	return &pipeline{
		orchestrator: publisher.NewOrchestrator(
			grafanaClient, clickupClient, engine, renderer, mapper, tracker,
			cache, cacheKey, cfg, log,
		),
		cache:    cache,
		grafana:  grafanaClient,
		clickup:  clickupClient,
		cacheKey: cacheKey,
	}, nil
}
