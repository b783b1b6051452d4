package assembler

import (
	"sort"
	"time"

	"stacks/internal/catalog"
	"stacks/internal/runstats"
)

// Input carries everything a run produced.
type Input struct {
	RunID string
	Now   time.Time
	// New holds collected entries in listing order; they replace prior entries
	// with the same key.
	New []catalog.Entry
	// Prior holds the previous dataset's entries, possibly updated by a
	// re-enrichment pass.
	Prior              []catalog.Entry
	Collection         runstats.Collection
	CollectionComplete bool
	// Checkpoint is the overlap boundary the run started from; nil when the
	// run walked the whole listing.
	Checkpoint *int64
	Passes     []runstats.Enrichment
	Timings    []runstats.StageTiming
}

// Output is the assembled result.
type Output struct {
	Dataset  catalog.Dataset
	Manifest catalog.Manifest
	Summary  runstats.Summary
	// Added counts keys that were not present in the prior dataset.
	Added int
}

// Assemble merges, orders, and summarizes. The input slices are copied, never
// retained.
func Assemble(in Input) Output {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	books, added := Merge(in.New, in.Prior)

	summary := runstats.Aggregate(in.Collection, in.Passes, in.Timings)
	missing := catalog.MissingDescriptions(books)
	summary.MissingDescriptions = len(missing)
	summary.TotalEntries = len(books)

	metadata := catalog.Metadata{
		SchemaVersion:                   catalog.SchemaVersion,
		FetcherVersion:                  catalog.FetcherVersion,
		FetchDate:                       catalog.FormatTimestamp(now),
		TotalBooks:                      len(books),
		BooksWithoutDescriptions:        len(missing),
		BooksWithoutDescriptionsDetails: missing,
	}
	if !in.CollectionComplete {
		var resume int64
		if in.Checkpoint != nil {
			resume = *in.Checkpoint
		}
		metadata.ResumeCheckpoint = &resume
	}

	enrichment := summary.Enrichment
	failed := append([]string{}, enrichment.FailedKeys...)
	manifest := catalog.Manifest{
		SchemaVersion:      catalog.SchemaVersion,
		FetcherVersion:     catalog.FetcherVersion,
		LastFetched:        metadata.FetchDate,
		TotalBooks:         len(books),
		NewBooksAdded:      added,
		EnrichmentComplete: in.CollectionComplete && len(failed) == 0,
		EnrichmentStats: catalog.EnrichmentStats{
			Attempted:        enrichment.Attempted,
			Succeeded:        enrichment.Succeeded,
			Partial:          enrichment.Partial,
			Failed:           len(failed),
			FallbackSynopsis: enrichment.FallbackSynopsis,
			FailedASINs:      failed,
		},
		CollectionComplete: in.CollectionComplete,
		RunID:              in.RunID,
	}

	return Output{
		Dataset:  catalog.Dataset{Metadata: metadata, Books: books},
		Manifest: manifest,
		Summary:  summary,
		Added:    added,
	}
}

// Merge places fresh entries ahead of prior ones, keeps the first occurrence
// of each key, and stable-sorts by descending acquisition time. added counts
// fresh keys absent from prior.
func Merge(fresh, prior []catalog.Entry) (books []catalog.Entry, added int) {
	priorKeys := make(map[string]struct{}, len(prior))
	for _, entry := range prior {
		priorKeys[entry.ASIN] = struct{}{}
	}

	dedup := catalog.NewDeduplicator()
	books = make([]catalog.Entry, 0, len(fresh)+len(prior))
	for _, entry := range fresh {
		if !dedup.Add(entry.ASIN) {
			continue
		}
		if _, ok := priorKeys[entry.ASIN]; !ok {
			added++
		}
		books = append(books, entry.Clone())
	}
	for _, entry := range prior {
		if !dedup.Add(entry.ASIN) {
			continue
		}
		books = append(books, entry.Clone())
	}

	sort.SliceStable(books, func(i, j int) bool {
		return books[i].AcquiredAt > books[j].AcquiredAt
	})
	return books, added
}
