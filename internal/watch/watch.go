// Package watch runs the publish pipeline on a cron schedule and exposes a
// small status server for health checks and metrics.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/pkg/metrics"
	"github.com/jStrider/grafana-publisher/internal/publisher"
)

// RunFunc executes one publish run and returns its report
type RunFunc func(ctx context.Context) (*publisher.BatchReport, error)

// Daemon schedules publish runs and serves status over HTTP
type Daemon struct {
	schedule string
	addr     string
	run      RunFunc
	logger   *logger.Logger

	mu       sync.RWMutex
	lastRun  time.Time
	lastErr  error
	lastRpt  *publisher.BatchReport
	runCount int
}

// New validates the cron schedule and builds a daemon. Standard five-field
// cron expressions are accepted.
func New(schedule, addr string, run RunFunc, log *logger.Logger) (*Daemon, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return &Daemon{schedule: schedule, addr: addr, run: run, logger: log}, nil
}

// Start blocks until ctx is cancelled, running the pipeline per schedule
func (d *Daemon) Start(ctx context.Context) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(d.schedule, func() { d.runOnce(ctx) }); err != nil {
		return err
	}
	scheduler.Start()
	d.logger.Infof("watch mode started, schedule %q, status server on %s", d.schedule, d.addr)

	srv := &http.Server{Addr: d.addr, Handler: d.router()}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		scheduler.Stop()
		return err
	case <-ctx.Done():
	}

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.logger.Info("scheduled run starting")
	report, err := d.run(ctx)

	d.mu.Lock()
	d.lastRun = time.Now()
	d.lastErr = err
	d.lastRpt = report
	d.runCount++
	d.mu.Unlock()

	if err != nil {
		d.logger.ErrorWithErr(err, "scheduled run failed")
		return
	}
	d.logger.WithFields(map[string]interface{}{
		"counts": report.Counts(),
	}).Info("scheduled run finished")
}

func (d *Daemon) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", d.handleHealthz)
	r.Get("/status", d.handleStatus)
	r.Handle("/metrics", metrics.Handler())
	return r
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResponse struct {
	Schedule string         `json:"schedule"`
	Runs     int            `json:"runs"`
	LastRun  *time.Time     `json:"last_run,omitempty"`
	LastErr  string         `json:"last_error,omitempty"`
	Counts   map[string]int `json:"last_counts,omitempty"`
}

func (d *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	d.mu.RLock()
	resp := statusResponse{Schedule: d.schedule, Runs: d.runCount}
	if !d.lastRun.IsZero() {
		t := d.lastRun
		resp.LastRun = &t
	}
	if d.lastErr != nil {
		resp.LastErr = d.lastErr.Error()
	}
	if d.lastRpt != nil {
		resp.Counts = d.lastRpt.Counts()
	}
	d.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
