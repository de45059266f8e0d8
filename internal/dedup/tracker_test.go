package dedup

import (
	"testing"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/domain/ticket"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
)

func newTracker(strategy, updateOn string) *Tracker {
	return NewTracker(config.DeduplicationConfig{
		Strategy: strategy,
		UpdateOn: updateOn,
	}, logger.Nop())
}

func TestTracker_FindExisting_ByMarker(t *testing.T) {
	fp := "abcdef0123456789"
	open := []ticket.Ticket{
		{ID: "t1", Title: "[chu][vm1] disk", Description: "something else"},
		{ID: "t2", Title: "edited by a human", Description: "details\n\ngp:fp:" + fp},
	}

	tracker := newTracker("fingerprint", "never")
	got := tracker.FindExisting(fp, "[chu][vm1] disk space", open)
	if got == nil || got.ID != "t2" {
		t.Fatalf("FindExisting() = %v, want ticket t2", got)
	}
}

func TestTracker_FindExisting_TitleFallback(t *testing.T) {
	// Ticket created before markers existed: no marker in the description,
	// but the title matches exactly.
	open := []ticket.Ticket{
		{ID: "t1", Title: "[chu][vm1] disk space", Description: "no marker here"},
	}

	tracker := newTracker("fingerprint", "never")
	got := tracker.FindExisting("abcdef0123456789", "[chu][vm1] disk space", open)
	if got == nil || got.ID != "t1" {
		t.Fatalf("FindExisting() = %v, want title-matched ticket t1", got)
	}
}

func TestTracker_FindExisting_NoMatch(t *testing.T) {
	open := []ticket.Ticket{
		{ID: "t1", Title: "other", Description: "gp:fp:ffffffffffffffff"},
	}

	tracker := newTracker("fingerprint", "never")
	if got := tracker.FindExisting("abcdef0123456789", "[chu][vm1] disk", open); got != nil {
		t.Fatalf("FindExisting() = %v, want nil", got)
	}
}

func TestTracker_FindExisting_TaskNameStrategy(t *testing.T) {
	fp := "abcdef0123456789"
	open := []ticket.Ticket{
		{ID: "t1", Title: "some other ticket", Description: "gp:fp:" + fp},
	}

	// task_name strategy ignores markers entirely.
	tracker := newTracker("task_name", "never")
	if got := tracker.FindExisting(fp, "[chu][vm1] disk", open); got != nil {
		t.Fatalf("FindExisting() = %v, want nil under task_name strategy", got)
	}
}

func TestTracker_Decide(t *testing.T) {
	existing := &ticket.Ticket{ID: "t1", Priority: alert.SeverityMedium}

	tests := []struct {
		name     string
		updateOn string
		priority string
		existing *ticket.Ticket
		want     Decision
	}{
		{"no existing ticket", config.UpdateOnPriorityIncrease, "medium", nil, DecisionCreate},
		{"same priority skips", config.UpdateOnPriorityIncrease, "medium", existing, DecisionSkip},
		{"lower priority skips", config.UpdateOnPriorityIncrease, "low", existing, DecisionSkip},
		{"higher priority updates", config.UpdateOnPriorityIncrease, "critical", existing, DecisionUpdate},
		{"never policy skips", config.UpdateOnNever, "critical", existing, DecisionSkip},
		{"always policy updates", config.UpdateOnAlways, "low", existing, DecisionUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTracker("fingerprint", tt.updateOn)
			candidate := alert.Classified{Priority: tt.priority}
			if got := tracker.Decide(candidate, tt.existing); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	a := alert.Alert{Source: "prod", Labels: map[string]string{"host": "vm1"}}
	fp := a.Fingerprint()

	desc := "ticket body\n\n" + Marker(fp)
	open := []ticket.Ticket{{ID: "t1", Title: "x", Description: desc}}

	tracker := newTracker("fingerprint", "never")
	if got := tracker.FindExisting(fp, "y", open); got == nil {
		t.Fatal("marker written by Marker() was not recovered")
	}
}
