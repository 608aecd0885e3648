package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dealdesk/internal/config"
	"dealdesk/internal/document"
	"dealdesk/internal/notifications"
)

// DefaultRequestTimeout bounds each request when no timeout is configured.
const DefaultRequestTimeout = 45 * time.Second

// Backend performs the two service requests.
type Backend interface {
	Extract(ctx context.Context, file document.File) (*document.ExtractionResult, error)
	Export(ctx context.Context, result *document.ExtractionResult) (*document.ExportResult, error)
}

// Outcome classifies how a request attempt ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

// Attempt describes a finished request for journaling.
type Attempt struct {
	Slot         Slot
	RequestID    string
	FileName     string
	FileSize     int64
	DocType      string
	ProcessingID string
	SheetURL     string
	Outcome      Outcome
	ErrorKind    string
	Error        string
	StartedAt    time.Time
	Duration     time.Duration
}

// Recorder journals finished attempts. Errors are logged and never change
// controller state.
type Recorder interface {
	Record(ctx context.Context, attempt Attempt) error
}

// Option configures optional Controller behavior.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout overrides the per-request deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRecorder journals every finished request.
func WithRecorder(recorder Recorder) Option {
	return func(c *Controller) {
		c.recorder = recorder
	}
}

// WithNotifier publishes completion and failure events.
func WithNotifier(notifier notifications.Service) Option {
	return func(c *Controller) {
		c.notifier = notifier
	}
}

// WithClock overrides the time source used for attempt timing.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRequestIDFunc overrides request identifier generation.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// OptionsFromConfig derives the timeout option from configuration.
func OptionsFromConfig(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	return []Option{WithTimeout(cfg.RequestTimeout())}
}

func defaultRequestID() string {
	return uuid.NewString()
}
