package upstream

import (
	"fmt"
	"strconv"
	"strings"

	"stacks/internal/services"
)

// Kind classifies the structured result of a single upstream call.
type Kind int

const (
	// KindSuccess is a payload without protocol errors.
	KindSuccess Kind = iota
	// KindHTTPError is a non-2xx response.
	KindHTTPError
	// KindTransportError is a call that never produced a response.
	KindTransportError
	// KindProtocolErrorWithPayload is an errors array alongside usable data.
	KindProtocolErrorWithPayload
	// KindProtocolErrorWithoutPayload is an errors array and no usable data.
	KindProtocolErrorWithoutPayload
	// KindEmptyResult is a 2xx response without usable data.
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindHTTPError:
		return "http_error"
	case KindTransportError:
		return "transport_error"
	case KindProtocolErrorWithPayload:
		return "protocol_error_with_payload"
	case KindProtocolErrorWithoutPayload:
		return "protocol_error_without_payload"
	case KindEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// ProtocolError is one entry of a response's top-level errors array.
type ProtocolError struct {
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

// PathString joins the error path with dots, e.g. "product.customerReviewsTop".
func (e ProtocolError) PathString() string {
	parts := make([]string, 0, len(e.Path))
	for _, segment := range e.Path {
		switch v := segment.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ".")
}

// Outcome is the structured result of one upstream call. Exactly one of Payload
// or Err is meaningful depending on Kind.
type Outcome[T any] struct {
	Operation  string
	Kind       Kind
	StatusCode int
	Errors     []ProtocolError
	Payload    *T
	// Cause is the underlying transport or decode failure, when any.
	Cause   error
	Snippet string
}

// Usable reports whether the caller can extract data from the outcome.
func (o Outcome[T]) Usable() bool {
	return o.Payload != nil && (o.Kind == KindSuccess || o.Kind == KindProtocolErrorWithPayload)
}

// Partial reports a protocol error that still carried data.
func (o Outcome[T]) Partial() bool {
	return o.Kind == KindProtocolErrorWithPayload
}

// Retryable reports whether the retry policy should attempt the call again.
func (o Outcome[T]) Retryable() bool {
	switch o.Kind {
	case KindHTTPError, KindTransportError, KindProtocolErrorWithoutPayload, KindEmptyResult:
		return true
	default:
		return false
	}
}

// Err converts a failed outcome into an error tagged with a services marker.
// Usable outcomes return nil.
func (o Outcome[T]) Err() error {
	switch o.Kind {
	case KindSuccess, KindProtocolErrorWithPayload:
		if o.Payload != nil {
			return nil
		}
		return services.Wrap(services.ErrEmptyResult, "upstream", o.Operation, "no payload", nil)
	case KindHTTPError:
		msg := fmt.Sprintf("http %d", o.StatusCode)
		if o.Snippet != "" {
			msg += ": " + o.Snippet
		}
		return services.Wrap(services.ErrTransport, "upstream", o.Operation, msg, o.Cause)
	case KindTransportError:
		return services.Wrap(services.ErrTransport, "upstream", o.Operation, "request failed", o.Cause)
	case KindProtocolErrorWithoutPayload:
		return services.Wrap(services.ErrProtocol, "upstream", o.Operation, o.ErrorSummary(), nil)
	case KindEmptyResult:
		return services.Wrap(services.ErrEmptyResult, "upstream", o.Operation, "no usable payload", o.Cause)
	default:
		return services.Wrap(services.ErrTransport, "upstream", o.Operation, "unknown outcome", o.Cause)
	}
}

// ErrorSummary joins protocol error messages and paths for logging.
func (o Outcome[T]) ErrorSummary() string {
	if len(o.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			msg = "unspecified error"
		}
		if path := e.PathString(); path != "" {
			msg += " (path " + path + ")"
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}
