package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
)

const validConfig = `
grafana:
  url: https://grafana.example.com
  token: ${TEST_GRAFANA_TOKEN}
  timeout: 10s
  sources:
    - name: prod
      labels_filter:
        env: prod

publishers:
  clickup:
    enabled: true
    token: pk_123
    list_id: "901"
    field_mappings:
      priority:
        field_name: Priority
        type: drop_down

alert_rules:
  - name: disk-space
    patterns:
      - "disk.*space"
    priority: high
    template: storage

templates:
  storage:
    title: "[{customer_id}][{vm}] {alert_name}"
    description: "{description}"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_GRAFANA_TOKEN", "glsa_secret")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Grafana.Token != "glsa_secret" {
		t.Errorf("token = %q, want env-expanded value", cfg.Grafana.Token)
	}
	if cfg.Grafana.Timeout.Std() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Grafana.Timeout.Std())
	}
	if len(cfg.Grafana.Sources) != 1 || cfg.Grafana.Sources[0].LabelsFilter["env"] != "prod" {
		t.Errorf("sources = %+v", cfg.Grafana.Sources)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEST_GRAFANA_TOKEN", "glsa_secret")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Settings.Defaults.Priority != "medium" || cfg.Settings.Defaults.Template != "default" {
		t.Errorf("defaults = %+v", cfg.Settings.Defaults)
	}
	if cfg.Settings.Deduplication.Strategy != "fingerprint" {
		t.Errorf("strategy = %q", cfg.Settings.Deduplication.Strategy)
	}
	if cfg.Settings.Deduplication.UpdateOn != UpdateOnPriorityIncrease {
		t.Errorf("update_on = %q", cfg.Settings.Deduplication.UpdateOn)
	}
	if !cfg.DedupEnabled() || !cfg.HistoryEnabled() {
		t.Error("dedup and history must default to enabled")
	}

	cu := cfg.Publishers.ClickUp
	if cu.APIURL != "https://api.clickup.com" {
		t.Errorf("api_url = %q", cu.APIURL)
	}
	if cu.RateLimit != 1.5 {
		t.Errorf("rate_limit = %v", cu.RateLimit)
	}
	if cu.Cache.TTL.Std() != 6*time.Hour {
		t.Errorf("cache ttl = %v", cu.Cache.TTL.Std())
	}
	if !cu.CacheEnabled() {
		t.Error("cache must default to enabled")
	}
}

func TestLoad_UnsetEnvTokenKept(t *testing.T) {
	os.Unsetenv("TEST_GRAFANA_TOKEN")

	// The raw ${VAR} text survives expansion so validation can point at it,
	// and an enabled publisher with an unexpanded token is rejected.
	cfg := validConfig
	_, err := Load(writeConfig(t, cfg))
	if err != nil {
		// grafana.token keeps the literal and passes "required"; the error,
		// if any, must be a config error, not a crash.
		if !apperrors.IsCode(err, apperrors.ErrCodeConfig) {
			t.Fatalf("Load() error = %v, want config error", err)
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TEST_GRAFANA_TOKEN", "glsa_secret")

	tests := []struct {
		name    string
		mutate  string
		replace string
	}{
		{
			name:    "bad rule regex fails at load",
			mutate:  `      - "disk.*space"`,
			replace: `      - "disk[unclosed"`,
		},
		{
			name:    "unknown template reference",
			mutate:  `    template: storage`,
			replace: `    template: nonexistent`,
		},
		{
			name:    "enabled publisher without list id",
			mutate:  `    list_id: "901"`,
			replace: `    list_id: ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := strings.Replace(validConfig, tt.mutate, tt.replace, 1)
			_, err := Load(writeConfig(t, broken))
			if !apperrors.IsCode(err, apperrors.ErrCodeConfig) {
				t.Errorf("Load() error = %v, want CONFIG_ERROR", err)
			}
		})
	}
}

func TestLoad_RequiredFieldWithoutMapping(t *testing.T) {
	t.Setenv("TEST_GRAFANA_TOKEN", "glsa_secret")

	broken := validConfig + `
settings:
  defaults:
    priority: medium
`
	broken = strings.Replace(broken, "    field_mappings:", `    required_fields: [support_type]
    field_mappings:`, 1)

	_, err := Load(writeConfig(t, broken))
	if !apperrors.IsCode(err, apperrors.ErrCodeConfig) {
		t.Errorf("Load() error = %v, want CONFIG_ERROR for unmapped required field", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !apperrors.IsCode(err, apperrors.ErrCodeConfig) {
		t.Errorf("Load() error = %v, want CONFIG_ERROR", err)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	t.Setenv("TEST_GRAFANA_TOKEN", "glsa_secret")

	broken := strings.Replace(validConfig, "  timeout: 10s", "  timeout: tenseconds", 1)
	_, err := Load(writeConfig(t, broken))
	if err == nil {
		t.Fatal("Load() = nil error for malformed duration")
	}
}
