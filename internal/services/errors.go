package services

import (
	"errors"
	"strings"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrTransport           = errors.New("transport error")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrConcurrentOperation = errors.New("concurrent operation")
	ErrConfiguration       = errors.New("configuration error")
	ErrTimeout             = errors.New("timeout")
)

// Error is a classified failure. Markers are matched with errors.Is; Message
// is the user-facing reason without the classification prefix.
type Error struct {
	Markers   []error
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if len(e.Markers) > 0 && e.Markers[0] != nil {
		b.WriteString(e.Markers[0].Error())
		b.WriteString(": ")
	}
	b.WriteString(buildDetail(e.Component, e.Operation, e.Message))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, len(e.Markers)+1)
	for _, m := range e.Markers {
		if m != nil {
			out = append(out, m)
		}
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Reason returns the message (and cause, when present) without the marker and
// component prefix.
func (e *Error) Reason() string {
	msg := strings.TrimSpace(e.Message)
	if e.Err == nil {
		return msg
	}
	cause := strings.TrimSpace(e.Err.Error())
	if msg == "" {
		return cause
	}
	return msg + ": " + cause
}

// Wrap builds an error that includes component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransport
	}
	return &Error{
		Markers:   []error{marker},
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// WrapTimeout tags a transport failure that was caused by a request deadline.
func WrapTimeout(component, operation, message string, err error) error {
	return &Error{
		Markers:   []error{ErrTransport, ErrTimeout},
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// Kind returns a short classification label for err, suitable for logs and
// history records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConcurrentOperation):
		return "concurrent_operation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// Reason extracts the user-facing reason from err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		if r := svcErr.Reason(); r != "" {
			return r
		}
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
