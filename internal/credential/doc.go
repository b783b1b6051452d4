// Package credential supplies the session credential and the client
// identifier that accompany every upstream request.
//
// Providers read the credential from an environment variable or a file and
// re-read it on Refresh so a long run can pick up a value renewed by an
// external helper. Tokens format as redacted fingerprints.
package credential
