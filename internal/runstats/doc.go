// Package runstats holds the per-stage accumulators of a sync run and the
// aggregation that turns them into a run summary.
//
// Each stage returns its own value (Collection, Enrichment); nothing here is
// shared or mutated across stages. Aggregate combines them after the fact.
package runstats
