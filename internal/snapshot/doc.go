// Package snapshot loads and saves catalog datasets on disk.
//
// A dataset is read from the configured input file or, when none is set, from
// the newest timestamped snapshot in the output directory. Saves write a new
// timestamped snapshot plus a fixed-name manifest, each through a temporary
// file renamed into place.
package snapshot
