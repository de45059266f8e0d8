package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jStrider/grafana-publisher/internal/publisher"
)

// ErrNotFound is returned when a run id does not exist in the store
var ErrNotFound = errors.New("run not found")

// Store keeps an append-only record of past runs in a local sqlite file.
// It is an audit trail only: deduplication never consults it, the live
// ticketing system stays the single source of truth.
type Store struct {
	sql *sql.DB
}

// Open opens (creating if needed) the history database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, err
	}
	s := &Store{sql: d}
	if err := s.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) migrate() error {
	_, err := s.sql.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    publisher TEXT NOT NULL,
    dry_run INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    alert_name TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    rule TEXT,
    priority TEXT,
    title TEXT,
    status TEXT NOT NULL,
    ticket_id TEXT,
    ticket_url TEXT,
    stage TEXT,
    error TEXT,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON records (fingerprint);
`)
	return err
}

// RunRow is one row of the runs table plus derived counts
type RunRow struct {
	ID         string
	Publisher  string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     map[string]int
}

// SaveReport persists one finished run with all its records
func (s *Store) SaveReport(ctx context.Context, report *publisher.BatchReport) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, publisher, dry_run, started_at, finished_at)
VALUES (?, ?, ?, ?, ?)
`, report.RunID, report.Publisher, boolToInt(report.DryRun),
		report.StartedAt.Unix(), report.FinishedAt.Unix())
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO records (run_id, seq, alert_name, fingerprint, rule, priority, title,
                     status, ticket_id, ticket_url, stage, error)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range report.Records {
		if _, err := stmt.Exec(report.RunID, i, r.AlertName, r.Fingerprint, r.Rule,
			r.Priority, r.Title, r.Status, r.TicketID, r.TicketURL, r.Stage, r.Error); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sql.QueryContext(ctx, `
SELECT id, publisher, dry_run, started_at, finished_at
FROM runs ORDER BY started_at DESC, id LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var dryRun int
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Publisher, &dryRun, &started, &finished); err != nil {
			return nil, err
		}
		r.DryRun = dryRun == 1
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		counts, err := s.runCounts(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Counts = counts
	}
	return out, nil
}

func (s *Store) runCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.sql.QueryContext(ctx, `
SELECT status, COUNT(1) FROM records WHERE run_id=? GROUP BY status
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// GetRun returns one run with its full record list
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRow, []publisher.Record, error) {
	var run RunRow
	var dryRun int
	var started, finished int64
	err := s.sql.QueryRowContext(ctx, `
SELECT id, publisher, dry_run, started_at, finished_at FROM runs WHERE id=?
`, runID).Scan(&run.ID, &run.Publisher, &dryRun, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	run.DryRun = dryRun == 1
	run.StartedAt = time.Unix(started, 0)
	run.FinishedAt = time.Unix(finished, 0)

	rows, err := s.sql.QueryContext(ctx, `
SELECT alert_name, fingerprint, rule, priority, title, status, ticket_id, ticket_url, stage, error
FROM records WHERE run_id=? ORDER BY seq
`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []publisher.Record
	for rows.Next() {
		var r publisher.Record
		if err := rows.Scan(&r.AlertName, &r.Fingerprint, &r.Rule, &r.Priority, &r.Title,
			&r.Status, &r.TicketID, &r.TicketURL, &r.Stage, &r.Error); err != nil {
			return nil, nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	run.Counts = map[string]int{}
	for _, r := range records {
		run.Counts[r.Status]++
	}
	return &run, records, nil
}

// LastSeen returns when a fingerprint last appeared in any run, or the zero
// time if it never did.
func (s *Store) LastSeen(ctx context.Context, fingerprint string) (time.Time, error) {
	var finished sql.NullInt64
	err := s.sql.QueryRowContext(ctx, `
SELECT MAX(runs.finished_at) FROM records
JOIN runs ON runs.id = records.run_id
WHERE records.fingerprint=?
`, fingerprint).Scan(&finished)
	if err != nil {
		return time.Time{}, err
	}
	if !finished.Valid {
		return time.Time{}, nil
	}
	return time.Unix(finished.Int64, 0), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
