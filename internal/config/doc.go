// Package config loads, normalizes, and validates stacks configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STACKS_BASE_URL. The Config type centralizes every knob the sync pipeline
// and CLI need: snapshot locations, upstream headers, retry and pacing policy,
// and the catalog format allow-list.
//
// The session credential itself is never stored here; Credential only names
// where it is read from so it can be re-read fresh during a run.
package config
