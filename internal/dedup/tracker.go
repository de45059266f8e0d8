package dedup

import (
	"regexp"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/domain/ticket"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
)

// Decision is the outcome of checking a candidate against existing tickets
type Decision int

const (
	// DecisionCreate means no equivalent open ticket exists
	DecisionCreate Decision = iota
	// DecisionSkip means an equivalent ticket exists and nothing changed
	DecisionSkip
	// DecisionUpdate means an equivalent ticket exists but the alert
	// changed materially and the ticket should be updated
	DecisionUpdate
)

// fpMarker matches the fingerprint line embedded in ticket descriptions at
// creation time so the key can be recovered on later runs.
var fpMarker = regexp.MustCompile(`gp:fp:([0-9a-f]{16})`)

// Marker returns the fingerprint marker line to embed in a new ticket's
// description.
func Marker(fingerprint string) string {
	return "gp:fp:" + fingerprint
}

// Tracker decides whether a candidate ticket already exists. The live state
// of the ticketing system is the source of truth: fingerprints are
// recomputed from ticket metadata on every run, never from a local ledger.
type Tracker struct {
	cfg    config.DeduplicationConfig
	logger *logger.Logger
}

// NewTracker creates a tracker with the configured strategy and update policy
func NewTracker(cfg config.DeduplicationConfig, log *logger.Logger) *Tracker {
	return &Tracker{cfg: cfg, logger: log}
}

// FindExisting returns the open ticket equivalent to the candidate, or nil.
// The fingerprint strategy recovers the embedded marker from each ticket's
// description; tickets created before markers existed fall back to an exact
// title match (the historical task_name strategy).
func (t *Tracker) FindExisting(fingerprint, title string, open []ticket.Ticket) *ticket.Ticket {
	if t.cfg.Strategy == "task_name" {
		return matchByTitle(title, open)
	}

	for i := range open {
		m := fpMarker.FindStringSubmatch(open[i].Description)
		if m != nil && m[1] == fingerprint {
			return &open[i]
		}
	}
	return matchByTitle(title, open)
}

func matchByTitle(title string, open []ticket.Ticket) *ticket.Ticket {
	for i := range open {
		if open[i].Title == title {
			return &open[i]
		}
	}
	return nil
}

// Decide maps a candidate/existing pair to a terminal decision. The
// update-vs-skip trigger is an explicit configuration choice: by default a
// fingerprint match only becomes an update when the candidate's priority
// outranks the existing ticket's.
func (t *Tracker) Decide(candidate alert.Classified, existing *ticket.Ticket) Decision {
	if existing == nil {
		return DecisionCreate
	}

	switch t.cfg.UpdateOn {
	case config.UpdateOnAlways:
		return DecisionUpdate
	case config.UpdateOnNever:
		return DecisionSkip
	default: // priority_increase
		if alert.SeverityRank(candidate.Priority) > alert.SeverityRank(existing.Priority) {
			t.logger.WithFields(map[string]interface{}{
				"ticket": existing.ID,
				"old":    existing.Priority,
				"new":    candidate.Priority,
			}).Debug("priority increased, ticket needs update")
			return DecisionUpdate
		}
		return DecisionSkip
	}
}
