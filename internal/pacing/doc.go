// Package pacing inserts courtesy delays between sequential upstream calls.
package pacing
