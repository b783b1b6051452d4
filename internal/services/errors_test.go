package services_test

import (
	"errors"
	"strings"
	"testing"

	"stacks/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "collect", "page", "status 502", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"collect", "page", "status 502"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryableAndFatalClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
	}{
		{name: "nil", err: nil},
		{name: "transport", err: services.Wrap(services.ErrTransport, "enrich", "call", "status 503", nil), retryable: true},
		{name: "protocol", err: services.Wrap(services.ErrProtocol, "enrich", "call", "errors without data", nil), retryable: true},
		{name: "empty", err: services.Wrap(services.ErrEmptyResult, "collect", "page", "no library", nil), retryable: true},
		{name: "exhausted", err: services.Wrap(services.ErrExhausted, "collect", "page", "gave up", nil)},
		{name: "fatal input", err: services.Wrap(services.ErrFatalInput, "load", "dataset", "schema 1.0", nil), fatal: true},
		{name: "configuration", err: services.Wrap(services.ErrConfiguration, "sync", "config", "missing base url", nil), fatal: true},
		{name: "locked", err: services.ErrLocked, fatal: true},
		{name: "plain", err: errors.New("other")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Retryable(tt.err); got != tt.retryable {
				t.Fatalf("Retryable = %v, want %v", got, tt.retryable)
			}
			if got := services.Fatal(tt.err); got != tt.fatal {
				t.Fatalf("Fatal = %v, want %v", got, tt.fatal)
			}
		})
	}
}
