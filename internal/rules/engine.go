package rules

import (
	"regexp"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
)

// Engine classifies alerts against the ordered rule list. Rules overlap, so
// declaration order is significant: the first matching rule wins.
type Engine struct {
	rules    []compiledRule
	defaults config.DefaultsConfig
	logger   *logger.Logger
}

type compiledRule struct {
	rule     config.Rule
	patterns []*regexp.Regexp
	matchOn  matchTargets
}

type matchTargets struct {
	name        bool
	labels      bool
	description bool
}

// NewEngine compiles the configured rules. A malformed pattern fails here,
// before any alert is processed, with an error naming the offending rule.
func NewEngine(rules []config.Rule, defaults config.DefaultsConfig, log *logger.Logger) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))

	for _, r := range rules {
		cr := compiledRule{rule: r, matchOn: targetsFor(r)}
		for _, pattern := range r.Patterns {
			expr := pattern
			if r.Anchored {
				expr = "^(?:" + pattern + ")$"
			}
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, apperrors.Configf("rule %q has invalid pattern %q: %v",
					r.Name, pattern, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		compiled = append(compiled, cr)
	}

	return &Engine{rules: compiled, defaults: defaults, logger: log}, nil
}

func targetsFor(r config.Rule) matchTargets {
	if len(r.MatchOn) == 0 {
		// Default search surface: alert name plus every label value.
		// The alert description is a label-derived annotation in practice,
		// so it is included to match how rules were written historically.
		return matchTargets{name: true, labels: true, description: true}
	}
	var t matchTargets
	for _, target := range r.MatchOn {
		switch target {
		case "name":
			t.name = true
		case "labels":
			t.labels = true
		case "description":
			t.description = true
		}
	}
	return t
}

// Classify evaluates rules in declared order and returns the classified
// alert. Pure: no I/O, no mutation of the input.
func (e *Engine) Classify(a alert.Alert) alert.Classified {
	for _, cr := range e.rules {
		if cr.matches(a) {
			e.logger.WithFields(map[string]interface{}{
				"rule":  cr.rule.Name,
				"alert": a.Name,
			}).Debug("alert matched rule")

			priority := cr.rule.Priority
			if priority == "" {
				priority = e.defaults.Priority
			}
			template := cr.rule.Template
			if template == "" {
				template = e.defaults.Template
			}

			fields := make(map[string]string, len(cr.rule.Fields))
			for k, v := range cr.rule.Fields {
				fields[k] = v
			}

			return alert.Classified{
				Alert:    a,
				Rule:     cr.rule.Name,
				Priority: priority,
				Template: template,
				Fields:   fields,
			}
		}
	}

	return alert.Classified{
		Alert:    a,
		Rule:     alert.DefaultRuleName,
		Priority: e.defaults.Priority,
		Template: e.defaults.Template,
		Fields:   map[string]string{},
	}
}

func (cr compiledRule) matches(a alert.Alert) bool {
	for _, re := range cr.patterns {
		if cr.matchOn.name && re.MatchString(a.Name) {
			return true
		}
		if cr.matchOn.description && re.MatchString(a.Description) {
			return true
		}
		if cr.matchOn.labels {
			for _, v := range a.Labels {
				if re.MatchString(v) {
					return true
				}
			}
		}
	}
	return false
}
