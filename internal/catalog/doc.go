// Package catalog defines the dataset written by a sync run: entries, review
// excerpts, metadata, and the manifest, plus the small pieces of ingestion
// logic that operate on them (deduplication, format filtering, and checkpoint
// computation).
package catalog
