// Package assembler merges newly collected entries with the prior dataset and
// produces the versioned Dataset and Manifest for a run.
package assembler
