package alert

import "time"

// Alert represents one scraped Grafana alert. Instances are immutable for the
// duration of a pipeline run; reprocessing builds new values instead of
// mutating in place.
type Alert struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	State       string            `json:"state"`
	CustomerID  string            `json:"customer_id"`
	VM          string            `json:"vm"`
	Description string            `json:"description"`
	Severity    string            `json:"severity"`
	Instance    string            `json:"instance,omitempty"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"starts_at"`
	Source      string            `json:"source"`
}

// Alert states as reported by the source
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
	StatePending  = "pending"
)

// Severity levels
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// DefaultRuleName is the sentinel rule name assigned when no configured rule
// matches an alert.
const DefaultRuleName = "default"

// Classified is an Alert plus the outcome of rule evaluation. Never mutated
// after creation.
type Classified struct {
	Alert    Alert             `json:"alert"`
	Rule     string            `json:"rule"`
	Priority string            `json:"priority"`
	Template string            `json:"template"`
	Fields   map[string]string `json:"fields"`
}

// SeverityRank orders severities/priorities for update-vs-skip decisions.
// Unknown values rank below low.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
