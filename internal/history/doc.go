// Package history keeps a SQLite ledger of sync runs and the entries each run
// failed to enrich.
//
// The database lives in the state directory. Its schema is versioned; a
// mismatch is reported rather than migrated, and the operator removes the file
// to start a fresh ledger.
package history
