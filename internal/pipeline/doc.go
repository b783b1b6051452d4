// Package pipeline orchestrates one sync run under a single-instance file
// lock: load the prior dataset, collect new entries past the checkpoint,
// enrich them, assemble and save the snapshot, and record the run.
package pipeline
