package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the final state of a run.
type Status string

const (
	// StatusCompleted means collection reached the overlap or last page and every
	// entry was enriched.
	StatusCompleted Status = "completed"
	// StatusPartial means output was written but collection or enrichment left gaps.
	StatusPartial Status = "partial"
	// StatusFailed means the run wrote no output.
	StatusFailed Status = "failed"
)

// Run is one ledger row.
type Run struct {
	ID                  string
	StartedAt           time.Time
	FinishedAt          time.Time
	Status              Status
	FullRefresh         bool
	Pages               int
	Fetched             int
	Filtered            int
	Duplicates          int
	Collected           int
	Added               int
	TotalBooks          int
	EnrichAttempted     int
	EnrichSucceeded     int
	EnrichPartial       int
	EnrichFailed        int
	MissingDescriptions int
	CollectionComplete  bool
	EnrichmentComplete  bool
	SnapshotPath        string
	Error               string
	Failures            []Failure
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failure is one entry a run could not process.
type Failure struct {
	RunID   string
	ASIN    string
	Stage   string
	Message string
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, started_at, finished_at, status, full_refresh, pages, fetched, filtered,
	duplicates, collected, added, total_books, enrich_attempted, enrich_succeeded, enrich_partial,
	enrich_failed, missing_descriptions, collection_complete, enrichment_complete, snapshot_path, error_message`

// Record inserts run and its failures in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("history: run id required")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.StartedAt.UTC().Format(timeLayout),
			run.FinishedAt.UTC().Format(timeLayout),
			string(run.Status),
			boolToInt(run.FullRefresh),
			run.Pages,
			run.Fetched,
			run.Filtered,
			run.Duplicates,
			run.Collected,
			run.Added,
			run.TotalBooks,
			run.EnrichAttempted,
			run.EnrichSucceeded,
			run.EnrichPartial,
			run.EnrichFailed,
			run.MissingDescriptions,
			boolToInt(run.CollectionComplete),
			boolToInt(run.EnrichmentComplete),
			run.SnapshotPath,
			run.Error,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, failure := range run.Failures {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO run_failures (run_id, asin, stage, message) VALUES (?, ?, ?, ?)",
				run.ID, failure.ASIN, failure.Stage, failure.Message,
			); err != nil {
				return fmt.Errorf("insert run failure: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit run: %w", err)
		}
		return nil
	})
}

// List returns up to limit runs, newest first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with id, or nil when none exists. Failures are included.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	failures, err := s.Failures(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Failures = failures
	return &run, nil
}

// Failures returns the failures recorded for runID in insertion order.
func (s *Store) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, asin, stage, message FROM run_failures WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("list run failures: %w", err)
	}
	defer rows.Close()

	failures := make([]Failure, 0)
	for rows.Next() {
		var failure Failure
		if err := rows.Scan(&failure.RunID, &failure.ASIN, &failure.Stage, &failure.Message); err != nil {
			return nil, fmt.Errorf("scan run failure: %w", err)
		}
		failures = append(failures, failure)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run failures: %w", err)
	}
	return failures, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                Run
		started, finished  string
		status             string
		fullRefresh        int
		collectionComplete int
		enrichmentComplete int
	)
	err := row.Scan(
		&run.ID,
		&started,
		&finished,
		&status,
		&fullRefresh,
		&run.Pages,
		&run.Fetched,
		&run.Filtered,
		&run.Duplicates,
		&run.Collected,
		&run.Added,
		&run.TotalBooks,
		&run.EnrichAttempted,
		&run.EnrichSucceeded,
		&run.EnrichPartial,
		&run.EnrichFailed,
		&run.MissingDescriptions,
		&collectionComplete,
		&enrichmentComplete,
		&run.SnapshotPath,
		&run.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.FullRefresh = fullRefresh != 0
	run.CollectionComplete = collectionComplete != 0
	run.EnrichmentComplete = enrichmentComplete != 0
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
