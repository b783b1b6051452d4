package assembler

import (
	"reflect"
	"testing"
	"time"

	"stacks/internal/catalog"
	"stacks/internal/runstats"
)

func entry(asin string, acquired int64, description string) catalog.Entry {
	e := catalog.Entry{ASIN: asin, Title: "Title " + asin, AcquiredAt: acquired}
	e.SetDescription(description)
	return e
}

func asins(books []catalog.Entry) []string {
	out := make([]string, 0, len(books))
	for _, book := range books {
		out = append(out, book.ASIN)
	}
	return out
}

func TestMergeReplacesAndSorts(t *testing.T) {
	fresh := []catalog.Entry{entry("N1", 900, "new"), entry("P2", 800, "refetched"), entry("N3", 800, "")}
	prior := []catalog.Entry{entry("P1", 850, "old"), entry("P2", 800, "stale"), entry("P3", 100, "")}

	books, added := Merge(fresh, prior)
	if got := asins(books); !reflect.DeepEqual(got, []string{"N1", "P1", "P2", "N3", "P3"}) {
		t.Fatalf("order = %v", got)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	if *books[2].Description != "refetched" {
		t.Fatalf("prior entry was not replaced: %v", *books[2].Description)
	}
}

func TestMergeCopiesInput(t *testing.T) {
	fresh := []catalog.Entry{entry("A", 1, "x")}
	fresh[0].Authors = []string{"One"}
	books, _ := Merge(fresh, nil)
	fresh[0].Authors[0] = "Changed"
	fresh[0].SetDescription("changed")
	if books[0].Authors[0] != "One" || *books[0].Description != "x" {
		t.Fatalf("assembled entry shares memory with input: %+v", books[0])
	}
}

func TestAssembleCompleteRun(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	checkpoint := int64(500)
	out := Assemble(Input{
		RunID:              "run-1",
		Now:                now,
		New:                []catalog.Entry{entry("N1", 900, "syn"), entry("N2", 800, "")},
		Prior:              []catalog.Entry{entry("P1", 500, "old")},
		Collection:         runstats.Collection{Fetched: 2, Collected: 2, ReachedOverlap: true, Calls: runstats.CallHistogram{"first_try": 1}},
		CollectionComplete: true,
		Checkpoint:         &checkpoint,
		Passes: []runstats.Enrichment{{
			Attempted:  2,
			Succeeded:  1,
			FailedKeys: []string{"N2"},
			Calls:      runstats.CallHistogram{"first_try": 1, "failed": 1},
		}},
	})

	meta := out.Dataset.Metadata
	if meta.SchemaVersion != "2.0" || meta.FetchDate != "2026-10-19T08:00:00Z" || meta.TotalBooks != 3 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.ResumeCheckpoint != nil {
		t.Fatalf("complete run must not record a resume checkpoint, got %d", *meta.ResumeCheckpoint)
	}
	if meta.BooksWithoutDescriptions != 1 || meta.BooksWithoutDescriptionsDetails[0].ASIN != "N2" {
		t.Fatalf("unexpected missing descriptions %+v", meta.BooksWithoutDescriptionsDetails)
	}

	manifest := out.Manifest
	if manifest.NewBooksAdded != 2 || manifest.TotalBooks != 3 || manifest.RunID != "run-1" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if manifest.EnrichmentComplete {
		t.Fatal("a failed enrichment must mark the manifest incomplete")
	}
	if manifest.EnrichmentStats.Failed != 1 || !reflect.DeepEqual(manifest.EnrichmentStats.FailedASINs, []string{"N2"}) {
		t.Fatalf("unexpected enrichment stats %+v", manifest.EnrichmentStats)
	}
	if out.Summary.Calls.Total() != 3 || out.Summary.MissingDescriptions != 1 || out.Summary.TotalEntries != 3 {
		t.Fatalf("unexpected summary %+v", out.Summary)
	}
}

func TestAssembleIncompleteRunRecordsResumeCheckpoint(t *testing.T) {
	checkpoint := int64(500)
	out := Assemble(Input{
		New:        []catalog.Entry{entry("N1", 900, "syn")},
		Prior:      []catalog.Entry{entry("P1", 500, "old")},
		Collection: runstats.Collection{Fetched: 1, Collected: 1},
		Checkpoint: &checkpoint,
	})
	if out.Dataset.Metadata.ResumeCheckpoint == nil || *out.Dataset.Metadata.ResumeCheckpoint != 500 {
		t.Fatalf("expected resume checkpoint 500, got %v", out.Dataset.Metadata.ResumeCheckpoint)
	}
	if out.Manifest.CollectionComplete || out.Manifest.EnrichmentComplete {
		t.Fatalf("unexpected completeness flags %+v", out.Manifest)
	}
	if next, ok := catalog.Checkpoint(&out.Dataset); !ok || next != 500 {
		t.Fatalf("next run checkpoint = %d %v, want 500", next, ok)
	}

	full := Assemble(Input{New: []catalog.Entry{entry("N1", 900, "syn")}})
	if full.Dataset.Metadata.ResumeCheckpoint == nil || *full.Dataset.Metadata.ResumeCheckpoint != 0 {
		t.Fatalf("incomplete full walk must resume from the beginning, got %v", full.Dataset.Metadata.ResumeCheckpoint)
	}
}

func TestAssembleEmptyRunKeepsArrays(t *testing.T) {
	out := Assemble(Input{CollectionComplete: true})
	if out.Dataset.Books == nil || out.Dataset.Metadata.BooksWithoutDescriptionsDetails == nil {
		t.Fatal("books and missing details must be empty arrays")
	}
	if out.Manifest.EnrichmentStats.FailedASINs == nil || !out.Manifest.EnrichmentComplete {
		t.Fatalf("unexpected manifest %+v", out.Manifest)
	}
}
