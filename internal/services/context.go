package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	slotKey      contextKey = "slot"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSlot annotates context with the request slot (upload or export).
func WithSlot(ctx context.Context, slot string) context.Context {
	if slot == "" {
		return ctx
	}
	return context.WithValue(ctx, slotKey, slot)
}

// SlotFromContext returns the slot name if present.
func SlotFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(slotKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
