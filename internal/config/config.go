package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/validator"
)

// Config holds the full application configuration loaded from YAML
type Config struct {
	Grafana    GrafanaConfig       `yaml:"grafana" validate:"required"`
	Publishers PublishersConfig    `yaml:"publishers"`
	AlertRules []Rule              `yaml:"alert_rules" validate:"dive"`
	Templates  map[string]Template `yaml:"templates"`
	Settings   SettingsConfig      `yaml:"settings"`
}

// GrafanaConfig configures the alert source
type GrafanaConfig struct {
	URL       string          `yaml:"url" validate:"required,url"`
	Token     string          `yaml:"token" validate:"required"`
	VerifySSL *bool           `yaml:"verify_ssl"`
	Timeout   Duration        `yaml:"timeout"`
	Sources   []GrafanaSource `yaml:"sources" validate:"min=1,dive"`
}

// GrafanaSource identifies one configured alert source within Grafana
type GrafanaSource struct {
	Name         string            `yaml:"name" validate:"required"`
	FolderID     string            `yaml:"folder_id"`
	RulesGroup   string            `yaml:"rules_group"`
	LabelsFilter map[string]string `yaml:"labels_filter"`
}

// PublishersConfig holds per-backend publisher configuration
type PublishersConfig struct {
	ClickUp *ClickUpConfig `yaml:"clickup"`
}

// ClickUpConfig configures the ClickUp publisher
type ClickUpConfig struct {
	Enabled        bool                    `yaml:"enabled"`
	APIURL         string                  `yaml:"api_url" validate:"omitempty,url"`
	Token          string                  `yaml:"token"`
	ListID         string                  `yaml:"list_id"`
	CheckSubtasks  bool                    `yaml:"check_subtasks"`
	RateLimit      float64                 `yaml:"rate_limit"`
	FieldMappings  map[string]FieldMapping `yaml:"field_mappings"`
	RequiredFields []string                `yaml:"required_fields"`
	Cache          CacheConfig             `yaml:"cache"`
}

// FieldMapping maps one semantic attribute to a native custom field
type FieldMapping struct {
	FieldName     string            `yaml:"field_name" validate:"required"`
	Aliases       []string          `yaml:"aliases"`
	Type          string            `yaml:"type"`
	Default       string            `yaml:"default"`
	Mapping       map[string]string `yaml:"mapping"`
	UseCustomerID bool              `yaml:"use_customer_id"`
}

// CacheConfig configures the on-disk schema cache
type CacheConfig struct {
	Enabled *bool    `yaml:"enabled"`
	TTL     Duration `yaml:"ttl"`
	Path    string   `yaml:"path"`
}

// Rule is one ordered alert classification rule. Rules are evaluated in
// declared order and the first match wins.
type Rule struct {
	Name     string            `yaml:"name" validate:"required"`
	Patterns []string          `yaml:"patterns" validate:"min=1"`
	Priority string            `yaml:"priority"`
	Template string            `yaml:"template"`
	Anchored bool              `yaml:"anchored"`
	MatchOn  []string          `yaml:"match_on" validate:"dive,oneof=name labels description"`
	Fields   map[string]string `yaml:"fields"`
}

// Template defines title/description patterns with {placeholder} tokens
type Template struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// SettingsConfig holds cross-cutting settings
type SettingsConfig struct {
	Defaults      DefaultsConfig      `yaml:"defaults"`
	Deduplication DeduplicationConfig `yaml:"deduplication"`
	Modes         ModesConfig         `yaml:"modes"`
	History       HistoryConfig       `yaml:"history"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DefaultsConfig is applied when no rule matches an alert
type DefaultsConfig struct {
	Priority string `yaml:"priority"`
	Template string `yaml:"template"`
}

// Update policies for fingerprint matches against an existing ticket.
const (
	UpdateOnPriorityIncrease = "priority_increase"
	UpdateOnNever            = "never"
	UpdateOnAlways           = "always"
)

// DeduplicationConfig controls duplicate detection
type DeduplicationConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=fingerprint task_name"`
	UpdateOn string `yaml:"update_on" validate:"omitempty,oneof=priority_increase never always"`
}

// ModesConfig holds default operating modes, overridable by CLI flags
type ModesConfig struct {
	DryRun      bool `yaml:"dry_run"`
	Interactive bool `yaml:"interactive"`
}

// HistoryConfig configures the local run-history store
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error fatal"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	File   string `yaml:"file"`
}

// Duration wraps time.Duration for YAML values like "6h" or "30s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// envToken matches ${VAR} references in config values
var envToken = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands and validates the configuration file.
// .env files in the working directory and next to the config file are
// loaded first so that ${VAR} token references resolve.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig,
			fmt.Sprintf("cannot read config file %s", path))
	}

	expanded := envToken.ReplaceAllStringFunc(string(raw), func(token string) string {
		name := envToken.FindStringSubmatch(token)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		// Unset variables stay as-is so validation can point at them.
		return token
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "malformed config file")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Grafana.Timeout == 0 {
		c.Grafana.Timeout = Duration(30 * time.Second)
	}
	if c.Settings.Defaults.Priority == "" {
		c.Settings.Defaults.Priority = "medium"
	}
	if c.Settings.Defaults.Template == "" {
		c.Settings.Defaults.Template = "default"
	}
	if c.Settings.Deduplication.Strategy == "" {
		c.Settings.Deduplication.Strategy = "fingerprint"
	}
	if c.Settings.Deduplication.UpdateOn == "" {
		c.Settings.Deduplication.UpdateOn = UpdateOnPriorityIncrease
	}
	if c.Settings.Logging.Level == "" {
		c.Settings.Logging.Level = "info"
	}
	if c.Settings.Logging.Format == "" {
		c.Settings.Logging.Format = "console"
	}
	if c.Settings.History.Path == "" {
		c.Settings.History.Path = "~/.grafana-publisher/history.db"
	}

	if cu := c.Publishers.ClickUp; cu != nil {
		if cu.APIURL == "" {
			cu.APIURL = "https://api.clickup.com"
		}
		if cu.RateLimit == 0 {
			cu.RateLimit = 1.5
		}
		if cu.Cache.TTL == 0 {
			cu.Cache.TTL = Duration(6 * time.Hour)
		}
		if cu.Cache.Path == "" {
			cu.Cache.Path = "~/.grafana-publisher/fields.json"
		}
	}
}

// Validate performs structural validation plus the cross-reference checks
// that must fail before any alert is processed: rule patterns compile and
// every referenced template exists.
func (c *Config) Validate() error {
	v := validator.New()
	if errs := v.Validate(c); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return apperrors.Configf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	for _, rule := range c.AlertRules {
		for _, pattern := range rule.Patterns {
			if _, err := regexp.Compile("(?i)" + pattern); err != nil {
				return apperrors.Configf("rule %q has invalid pattern %q: %v",
					rule.Name, pattern, err)
			}
		}
		if rule.Template != "" && rule.Template != c.Settings.Defaults.Template {
			if _, ok := c.Templates[rule.Template]; !ok {
				return apperrors.Configf("rule %q references unknown template %q",
					rule.Name, rule.Template)
			}
		}
	}

	if cu := c.Publishers.ClickUp; cu != nil && cu.Enabled {
		if cu.Token == "" || strings.HasPrefix(cu.Token, "${") {
			return apperrors.Config("clickup publisher is enabled but no token is set")
		}
		if cu.ListID == "" {
			return apperrors.Config("clickup publisher is enabled but list_id is missing")
		}
		for _, required := range cu.RequiredFields {
			if _, ok := cu.FieldMappings[required]; !ok {
				return apperrors.Configf("required field %q has no field mapping", required)
			}
		}
	}

	return nil
}

// Publisher returns the ClickUp publisher config if enabled
func (c *Config) Publisher(name string) (*ClickUpConfig, bool) {
	if name == "clickup" && c.Publishers.ClickUp != nil && c.Publishers.ClickUp.Enabled {
		return c.Publishers.ClickUp, true
	}
	return nil, false
}

// DedupEnabled reports whether duplicate detection is on (default true)
func (c *Config) DedupEnabled() bool {
	if c.Settings.Deduplication.Enabled == nil {
		return true
	}
	return *c.Settings.Deduplication.Enabled
}

// HistoryEnabled reports whether the run-history store is on (default true)
func (c *Config) HistoryEnabled() bool {
	if c.Settings.History.Enabled == nil {
		return true
	}
	return *c.Settings.History.Enabled
}

// CacheEnabled reports whether the schema cache is on (default true)
func (cu *ClickUpConfig) CacheEnabled() bool {
	if cu.Cache.Enabled == nil {
		return true
	}
	return *cu.Cache.Enabled
}

// ExpandPath resolves a leading ~ against the user home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
