// Package collector walks the paginated catalog listing newest-first and
// returns the entries acquired since the previous run.
//
// Each record passes through the overlap check, the format allow-list, and
// identity deduplication, in that order. The walk ends at the overlap boundary,
// the last page, the configured page limit, or the first page that exhausts
// its retries; in the last case the entries gathered so far are returned
// alongside the error so the caller can still persist progress.
package collector
