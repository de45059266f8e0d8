package publisher

import (
	"context"
	"time"

	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/domain/ticket"
	"github.com/jStrider/grafana-publisher/internal/fields"
	"github.com/jStrider/grafana-publisher/internal/schema"
)

// AlertSource produces the raw alerts for one run
type AlertSource interface {
	ListAlerts(ctx context.Context) ([]alert.Alert, error)
}

// TicketClient is the capability set the pipeline needs from a ticketing
// backend. Implementations own authentication, rate limiting and transient
// retries; the pipeline treats a returned error as terminal.
type TicketClient interface {
	ListOpenTickets(ctx context.Context) ([]ticket.Ticket, error)
	CreateTicket(ctx context.Context, req CreateRequest) (*ticket.Ticket, error)
	UpdateTicket(ctx context.Context, id string, req UpdateRequest) error
	ListCustomFields(ctx context.Context) ([]schema.FieldSchema, error)
	ListStatuses(ctx context.Context) ([]Status, error)
}

// CreateRequest carries everything needed to create one ticket
type CreateRequest struct {
	Title        string
	Description  string
	Status       string
	Priority     string
	CustomFields []fields.Value
}

// UpdateRequest carries the fields an update may change
type UpdateRequest struct {
	Priority    string
	Description string
}

// Status is one workflow status defined on the target list
type Status struct {
	Name string `json:"status"`
	Type string `json:"type"`
}

// InitialStatus picks the status new tickets should be created with: the
// first "open"-type status, falling back to the first defined status.
func InitialStatus(statuses []Status) string {
	for _, s := range statuses {
		if s.Type == "open" {
			return s.Name
		}
	}
	if len(statuses) > 0 {
		return statuses[0].Name
	}
	return "To Do"
}

// Terminal statuses of one alert's processing
const (
	StatusCreated          = "created"
	StatusUpdated          = "updated"
	StatusSkippedDuplicate = "skipped_duplicate"
	StatusSkippedUser      = "skipped_user"
	StatusFailed           = "failed"
	StatusWouldCreate      = "would_create"
	StatusWouldUpdate      = "would_update"
)

// Record is the outcome of attempting to publish one alert
type Record struct {
	AlertName   string `json:"alert_name"`
	Fingerprint string `json:"fingerprint"`
	Rule        string `json:"rule"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	TicketID    string `json:"ticket_id,omitempty"`
	TicketURL   string `json:"ticket_url,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchReport aggregates one run's records
type BatchReport struct {
	RunID      string    `json:"run_id"`
	Publisher  string    `json:"publisher"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Records    []Record  `json:"records"`
}

// Count returns the number of records with the given terminal status
func (r *BatchReport) Count(status string) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == status {
			n++
		}
	}
	return n
}

// Counts returns record totals keyed by terminal status
func (r *BatchReport) Counts() map[string]int {
	counts := map[string]int{}
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	return counts
}
