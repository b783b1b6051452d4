package runstats

import "time"

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// PartialError is a protocol error that arrived alongside usable data.
type PartialError struct {
	ASIN    string
	Message string
	Path    string
}

// Collection is the accumulator returned by the collector.
type Collection struct {
	Pages             int
	Fetched           int
	NonCatalog        int
	DuplicateKeys     []string
	MissingAuthors    int
	MissingTimestamps int
	Collected         int
	ReachedOverlap    bool
	ReachedLastPage   bool
	ReachedPageLimit  bool
	TotalReported     int64
	Calls             CallHistogram
}

// Consistent reports whether the counting invariant holds:
// collected = fetched - filtered - duplicates.
func (c Collection) Consistent() bool {
	return c.Collected == c.Fetched-c.NonCatalog-len(c.DuplicateKeys)
}

// Enrichment is the accumulator returned by one enrichment pass.
type Enrichment struct {
	Attempted        int
	Succeeded        int
	Partial          int
	FallbackSynopsis int
	PartialErrors    []PartialError
	FailedKeys       []string
	Calls            CallHistogram
}

// Failed returns the number of entries with total enrichment failure.
func (e Enrichment) Failed() int {
	return len(e.FailedKeys)
}

// Summary is the post-hoc aggregate of every stage of a run.
type Summary struct {
	Collection Collection
	Enrichment Enrichment
	Calls      CallHistogram
	Timings    []StageTiming
	// MissingDescriptions counts dataset entries left without a synopsis.
	MissingDescriptions int
	NewEntries          int
	TotalEntries        int
}

// Aggregate merges per-stage results. Enrichment passes (the new-entry pass
// and any retry of previously missing synopses) are summed in order.
func Aggregate(collection Collection, passes []Enrichment, timings []StageTiming) Summary {
	summary := Summary{
		Collection: collection,
		Calls:      CallHistogram{},
		Timings:    append([]StageTiming(nil), timings...),
		NewEntries: collection.Collected,
	}
	summary.Calls.Merge(collection.Calls)
	merged := Enrichment{Calls: CallHistogram{}}
	for _, pass := range passes {
		merged.Attempted += pass.Attempted
		merged.Succeeded += pass.Succeeded
		merged.Partial += pass.Partial
		merged.FallbackSynopsis += pass.FallbackSynopsis
		merged.PartialErrors = append(merged.PartialErrors, pass.PartialErrors...)
		merged.FailedKeys = append(merged.FailedKeys, pass.FailedKeys...)
		merged.Calls.Merge(pass.Calls)
	}
	summary.Enrichment = merged
	summary.Calls.Merge(merged.Calls)
	return summary
}

// Duration returns the sum of stage timings.
func (s Summary) Duration() time.Duration {
	var total time.Duration
	for _, timing := range s.Timings {
		total += timing.Duration
	}
	return total
}
