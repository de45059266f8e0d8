package rules

import (
	"testing"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
)

var testDefaults = config.DefaultsConfig{Priority: "medium", Template: "default"}

func newTestEngine(t *testing.T, rules []config.Rule) *Engine {
	t.Helper()
	e, err := NewEngine(rules, testDefaults, logger.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestEngine_Classify(t *testing.T) {
	rules := []config.Rule{
		{
			Name:     "disk-space",
			Patterns: []string{"disk.*space"},
			Priority: "high",
			Template: "storage_alert",
			Fields:   map[string]string{"support_type": "stockage"},
		},
		{
			Name:     "backup",
			Patterns: []string{"backup.*failed"},
			Priority: "critical",
			Template: "backup_alert",
		},
	}
	engine := newTestEngine(t, rules)

	tests := []struct {
		name         string
		alert        alert.Alert
		wantRule     string
		wantPriority string
		wantTemplate string
	}{
		{
			name:         "matches by alert name",
			alert:        alert.Alert{Name: "disk space critical on host1"},
			wantRule:     "disk-space",
			wantPriority: "high",
			wantTemplate: "storage_alert",
		},
		{
			name:         "match is case insensitive",
			alert:        alert.Alert{Name: "DISK SPACE warning"},
			wantRule:     "disk-space",
			wantPriority: "high",
			wantTemplate: "storage_alert",
		},
		{
			name:         "matches by label value",
			alert:        alert.Alert{Name: "nightly job", Labels: map[string]string{"job": "backup failed on vm2"}},
			wantRule:     "backup",
			wantPriority: "critical",
			wantTemplate: "backup_alert",
		},
		{
			name:         "matches by description",
			alert:        alert.Alert{Name: "generic", Description: "the backup has failed"},
			wantRule:     "backup",
			wantPriority: "critical",
			wantTemplate: "backup_alert",
		},
		{
			name:         "no match falls back to default",
			alert:        alert.Alert{Name: "cpu usage high"},
			wantRule:     alert.DefaultRuleName,
			wantPriority: "medium",
			wantTemplate: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Classify(tt.alert)
			if got.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", got.Rule, tt.wantRule)
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("Priority = %q, want %q", got.Priority, tt.wantPriority)
			}
			if got.Template != tt.wantTemplate {
				t.Errorf("Template = %q, want %q", got.Template, tt.wantTemplate)
			}
		})
	}
}

func TestEngine_FirstMatchWins(t *testing.T) {
	// Both rules match the alert; declared order decides.
	rules := []config.Rule{
		{Name: "first", Patterns: []string{"disk"}, Priority: "low", Template: "storage_alert"},
		{Name: "second", Patterns: []string{"disk.*space"}, Priority: "high", Template: "storage_alert"},
	}
	engine := newTestEngine(t, rules)

	got := engine.Classify(alert.Alert{Name: "disk space critical"})
	if got.Rule != "first" {
		t.Errorf("Rule = %q, want %q (declaration order must win)", got.Rule, "first")
	}
	if got.Priority != "low" {
		t.Errorf("Priority = %q, want priority of the first matching rule", got.Priority)
	}
}

func TestEngine_AnchoredRule(t *testing.T) {
	rules := []config.Rule{
		{Name: "exact", Patterns: []string{"server down"}, Anchored: true, Priority: "high", Template: "default"},
	}
	engine := newTestEngine(t, rules)

	if got := engine.Classify(alert.Alert{Name: "server down"}); got.Rule != "exact" {
		t.Errorf("anchored rule did not match exact name, got rule %q", got.Rule)
	}
	if got := engine.Classify(alert.Alert{Name: "web server down again"}); got.Rule != alert.DefaultRuleName {
		t.Errorf("anchored rule matched a substring, got rule %q", got.Rule)
	}
}

func TestEngine_MatchOnRestrictsSearch(t *testing.T) {
	rules := []config.Rule{
		{Name: "name-only", Patterns: []string{"backup"}, MatchOn: []string{"name"}, Priority: "high", Template: "default"},
	}
	engine := newTestEngine(t, rules)

	a := alert.Alert{Name: "cron", Labels: map[string]string{"job": "backup"}}
	if got := engine.Classify(a); got.Rule != alert.DefaultRuleName {
		t.Errorf("rule restricted to name matched on labels, got rule %q", got.Rule)
	}
}

func TestEngine_DefaultFieldsEmpty(t *testing.T) {
	engine := newTestEngine(t, nil)
	got := engine.Classify(alert.Alert{Name: "anything"})
	if got.Fields == nil || len(got.Fields) != 0 {
		t.Errorf("default classification fields = %v, want empty map", got.Fields)
	}
}

func TestNewEngine_BadPatternFailsFast(t *testing.T) {
	rules := []config.Rule{
		{Name: "ok", Patterns: []string{"disk"}},
		{Name: "broken", Patterns: []string{"[unclosed"}},
	}
	_, err := NewEngine(rules, testDefaults, logger.Nop())
	if err == nil {
		t.Fatal("NewEngine() accepted a malformed pattern")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeConfig) {
		t.Errorf("error code = %v, want CONFIG_ERROR", err)
	}
}
