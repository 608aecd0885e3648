package workflow

import (
	"context"
	"errors"

	"dealdesk/internal/document"
)

// ErrStaleResponse reports that a response arrived after the controller moved
// on and was discarded without touching state.
var ErrStaleResponse = errors.New("stale response discarded")

// Task tracks one asynchronous request.
type Task struct {
	slot      Slot
	requestID string
	done      chan struct{}

	err        error
	extraction *document.ExtractionResult
	export     *document.ExportResult
}

func newTask(slot Slot, requestID string) *Task {
	return &Task{slot: slot, requestID: requestID, done: make(chan struct{})}
}

// Slot returns the slot the request was issued from.
func (t *Task) Slot() Slot { return t.slot }

// RequestID returns the correlation identifier sent with the request.
func (t *Task) RequestID() string { return t.requestID }

// Done is closed once the response has been applied or discarded.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx is done. Abandoning a wait does
// not cancel the request.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task outcome; it is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// ExtractionResult returns the applied extraction result, or nil.
func (t *Task) ExtractionResult() *document.ExtractionResult {
	select {
	case <-t.done:
		return t.extraction
	default:
		return nil
	}
}

// ExportResult returns the applied export result, or nil.
func (t *Task) ExportResult() *document.ExportResult {
	select {
	case <-t.done:
		return t.export
	default:
		return nil
	}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}
