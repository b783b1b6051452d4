// Package upstream talks to the content provider's query endpoint.
//
// Each call is a single POST of {operationName, query, variables}; the
// response envelope is classified into an Outcome (success, HTTP error,
// transport error, protocol error with or without payload, empty result) so
// the retry layer can decide what to do without inspecting raw bodies. Numbers
// that the provider sometimes sends as strings are decoded leniently.
package upstream
