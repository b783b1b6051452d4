package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"stacks/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	first := history.Run{
		ID:                 "run-1",
		StartedAt:          base,
		FinishedAt:         base.Add(90 * time.Second),
		Status:             history.StatusCompleted,
		Fetched:            12,
		Collected:          10,
		Added:              10,
		TotalBooks:         10,
		CollectionComplete: true,
		EnrichmentComplete: true,
		SnapshotPath:       "/out/library-20261019T080000Z.json",
	}
	second := history.Run{
		ID:           "run-2",
		StartedAt:    base.Add(24*time.Hour + 500*time.Millisecond),
		FinishedAt:   base.Add(24*time.Hour + time.Minute),
		Status:       history.StatusPartial,
		EnrichFailed: 2,
		Error:        "retries exhausted",
		Failures: []history.Failure{
			{ASIN: "B1", Stage: "enrichment", Message: "http 502"},
			{ASIN: "B2", Stage: "enrichment", Message: "http 503"},
		},
	}
	for _, run := range []history.Run{first, second} {
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record(%s): %v", run.ID, err)
		}
	}

	runs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	got := runs[1]
	if got.Status != history.StatusCompleted || !got.CollectionComplete || !got.EnrichmentComplete || got.Fetched != 12 {
		t.Fatalf("unexpected round trip %+v", got)
	}
	if !got.StartedAt.Equal(first.StartedAt) || got.Duration() != 90*time.Second {
		t.Fatalf("unexpected timestamps %v %v", got.StartedAt, got.Duration())
	}

	limited, err := store.List(ctx, 1)
	if err != nil || len(limited) != 1 || limited[0].ID != "run-2" {
		t.Fatalf("List(1) = %+v, %v", limited, err)
	}

	failures, err := store.Failures(ctx, "run-2")
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 2 || failures[0].ASIN != "B1" || failures[1].Message != "http 503" {
		t.Fatalf("unexpected failures %+v", failures)
	}

	run, err := store.Get(ctx, "run-2")
	if err != nil || run == nil || len(run.Failures) != 2 || run.Error != "retries exhausted" {
		t.Fatalf("Get = %+v, %v", run, err)
	}
	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Get(missing) = %+v, %v", missing, err)
	}
}

func TestRecordRejectsDuplicateAndEmptyID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, history.Run{}); err == nil {
		t.Fatal("expected error for empty id")
	}
	run := history.Run{ID: "dup", StartedAt: time.Now(), FinishedAt: time.Now(), Status: history.StatusFailed}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, run); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	_, err = history.OpenPath(path)
	if !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
