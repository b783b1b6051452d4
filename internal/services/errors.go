package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks non-2xx responses and calls that never produced a response.
	ErrTransport = errors.New("transport error")
	// ErrProtocol marks responses whose errors array carried no usable data.
	ErrProtocol = errors.New("protocol error")
	// ErrEmptyResult marks 2xx responses without a usable payload.
	ErrEmptyResult = errors.New("empty result")
	// ErrExhausted marks calls that failed every attempt including the fresh-credential one.
	ErrExhausted = errors.New("retries exhausted")
	// ErrFatalInput marks conditions that abort a run before any output is written.
	ErrFatalInput    = errors.New("fatal input error")
	ErrConfiguration = errors.New("configuration error")
	ErrLocked        = errors.New("run already in progress")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err describes a failure the retry policy should attempt again.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTransport), errors.Is(err, ErrProtocol), errors.Is(err, ErrEmptyResult):
		return true
	default:
		return false
	}
}

// Fatal reports whether err aborts a run before any output is written.
func Fatal(err error) bool {
	return errors.Is(err, ErrFatalInput) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrLocked)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
