// Package main hosts the stacks CLI entrypoint and command graph.
//
// The Cobra-based command tree runs a sync against the configured provider,
// inspects the newest snapshot and the run ledger, checks readiness, and
// scaffolds configuration. Configuration resolution and logger setup live
// here so subcommands only deal with presentation.
//
// Keep this package lean: add new behavior to the internal packages first,
// then surface it through a command or flag.
package main
