// Package enrichment fetches the secondary metadata of catalog entries one at
// a time and applies it in place.
//
// Every call resolves to one of three classes. Success and PartialSuccess
// (protocol errors alongside usable data) are applied identically; only the
// latter is recorded with its error messages and paths. TotalFailure leaves the
// entry untouched and records its key, and the stage moves on to the next entry.
package enrichment
