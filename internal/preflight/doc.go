// Package preflight provides readiness checks for the filesystem paths,
// credential, and upstream settings a sync run depends on.
//
// The CLI "stacks preflight" command prints every check, and "stacks sync"
// runs them first so a doomed run fails before it touches the network.
// Checks for optional inputs are skipped when the input is not configured.
package preflight
