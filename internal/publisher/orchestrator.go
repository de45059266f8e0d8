package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/dedup"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	"github.com/jStrider/grafana-publisher/internal/domain/ticket"
	"github.com/jStrider/grafana-publisher/internal/fields"
	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/pkg/metrics"
	"github.com/jStrider/grafana-publisher/internal/rules"
	"github.com/jStrider/grafana-publisher/internal/schema"
	"github.com/jStrider/grafana-publisher/internal/templates"
)

// ConfirmFunc asks the user whether a ticket should be created. Used in
// interactive mode only.
type ConfirmFunc func(title, description string) bool

// Options control one run
type Options struct {
	DryRun      bool
	Interactive bool
	Confirm     ConfirmFunc
}

// Orchestrator drives the alert-to-ticket pipeline. Alerts are processed
// sequentially; the schema snapshot and the open-ticket list are loaded once
// per run and treated as read-only afterwards.
type Orchestrator struct {
	source    AlertSource
	client    TicketClient
	engine    *rules.Engine
	renderer  *templates.Renderer
	mapper    *fields.Mapper
	tracker   *dedup.Tracker
	cache     *schema.Cache
	cacheKey  string
	publisher string
	dedupOn   bool
	logger    *logger.Logger
}

// NewOrchestrator wires the pipeline components together
func NewOrchestrator(
	source AlertSource,
	client TicketClient,
	engine *rules.Engine,
	renderer *templates.Renderer,
	mapper *fields.Mapper,
	tracker *dedup.Tracker,
	cache *schema.Cache,
	cacheKey string,
	cfg *config.Config,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		source:    source,
		client:    client,
		engine:    engine,
		renderer:  renderer,
		mapper:    mapper,
		tracker:   tracker,
		cache:     cache,
		cacheKey:  cacheKey,
		publisher: "clickup",
		dedupOn:   cfg.DedupEnabled(),
		logger:    log,
	}
}

// Run executes the pipeline for every scraped alert and returns the batch
// report. Per-alert failures are recorded and processing continues; only
// configuration errors and unrecoverable fetch errors abort the run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		Publisher: o.publisher,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
	}

	alerts, err := o.source.ListAlerts(ctx)
	if err != nil {
		return nil, apperrors.Fetch("alert source", err).WithStage(apperrors.StageScrape)
	}
	o.logger.Infof("fetched %d alerts", len(alerts))

	schemas, err := o.cache.Fields(ctx, o.cacheKey, o.client.ListCustomFields)
	if err != nil {
		return nil, err
	}

	existing, err := o.loadOpenTickets(ctx)
	if err != nil {
		return nil, err
	}

	statuses, err := o.client.ListStatuses(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("cannot discover list statuses, using default")
	}
	initialStatus := InitialStatus(statuses)

	for _, a := range alerts {
		record := o.processAlert(ctx, a, schemas, existing, initialStatus, opts)
		report.Records = append(report.Records, record)
		metrics.RecordPublishOutcome(record.Status)
	}

	report.FinishedAt = time.Now()
	mode := "publish"
	if opts.DryRun {
		mode = "dry_run"
	}
	metrics.RecordRun(mode, report.FinishedAt.Sub(report.StartedAt))

	o.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"counts": report.Counts(),
	}).Info("run finished")

	return report, nil
}

func (o *Orchestrator) loadOpenTickets(ctx context.Context) ([]ticket.Ticket, error) {
	if !o.dedupOn {
		return nil, nil
	}
	tickets, err := o.client.ListOpenTickets(ctx)
	if err != nil {
		// Without the live ticket list every fingerprint would look new,
		// so publishing would duplicate the whole batch.
		return nil, apperrors.Fetch("open tickets", err).WithStage(apperrors.StageDedup)
	}
	o.logger.Infof("loaded %d open tickets for deduplication", len(tickets))
	return tickets, nil
}

// processAlert walks one alert through the state machine:
// Scraped -> Classified -> FieldsMapped -> DedupChecked -> terminal.
func (o *Orchestrator) processAlert(
	ctx context.Context,
	a alert.Alert,
	schemas []schema.FieldSchema,
	existing []ticket.Ticket,
	initialStatus string,
	opts Options,
) Record {
	classified := o.engine.Classify(a)
	fp := a.Fingerprint()

	record := Record{
		AlertName:   a.Name,
		Fingerprint: fp,
		Rule:        classified.Rule,
		Priority:    classified.Priority,
	}

	customFields, err := o.mapper.Map(classified, schemas)
	if err != nil {
		return failed(record, err)
	}

	title, description := o.renderer.Render(classified.Template, classified)
	record.Title = title
	description += "\n\n" + dedup.Marker(fp)

	decision := dedup.DecisionCreate
	var match *ticketRef
	if o.dedupOn {
		if found := o.tracker.FindExisting(fp, title, existing); found != nil {
			match = &ticketRef{id: found.ID, url: found.URL}
			decision = o.tracker.Decide(classified, found)
		}
	}

	switch decision {
	case dedup.DecisionSkip:
		record.Status = StatusSkippedDuplicate
		record.TicketID = match.id
		record.TicketURL = match.url
		return record

	case dedup.DecisionUpdate:
		record.TicketID = match.id
		record.TicketURL = match.url
		if opts.DryRun {
			record.Status = StatusWouldUpdate
			return record
		}
		err := o.client.UpdateTicket(ctx, match.id, UpdateRequest{
			Priority:    classified.Priority,
			Description: description,
		})
		if err != nil {
			return failed(record, apperrors.Publish("ticket update failed", err).
				WithStage(apperrors.StagePublish))
		}
		record.Status = StatusUpdated
		return record

	default: // create
		if opts.DryRun {
			record.Status = StatusWouldCreate
			return record
		}
		if opts.Interactive && opts.Confirm != nil && !opts.Confirm(title, description) {
			record.Status = StatusSkippedUser
			return record
		}
		created, err := o.client.CreateTicket(ctx, CreateRequest{
			Title:        title,
			Description:  description,
			Status:       initialStatus,
			Priority:     classified.Priority,
			CustomFields: customFields,
		})
		if err != nil {
			return failed(record, apperrors.Publish("ticket creation failed", err).
				WithStage(apperrors.StagePublish))
		}
		record.Status = StatusCreated
		record.TicketID = created.ID
		record.TicketURL = created.URL
		return record
	}
}

func failed(record Record, err error) Record {
	record.Status = StatusFailed
	record.Stage = apperrors.StageOf(err)
	record.Error = err.Error()
	return record
}

type ticketRef struct {
	id  string
	url string
}
