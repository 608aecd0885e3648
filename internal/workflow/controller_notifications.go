package workflow

import (
	"context"
	"errors"
	"time"

	"dealdesk/internal/document"
	"dealdesk/internal/logging"
	"dealdesk/internal/notifications"
	"dealdesk/internal/services"
)

func (c *Controller) onExtracted(ctx context.Context, fileName string, result *document.ExtractionResult, duration time.Duration) {
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("extraction succeeded",
		logging.String("file_name", fileName),
		logging.String("doc_type", result.DocType),
		logging.String("processing_id", result.ProcessingID),
		logging.Duration("duration", duration),
	)
	c.publish(ctx, notifications.EventExtractionCompleted, notifications.Payload{
		"fileName": fileName,
		"docType":  document.DocTypeLabel(result.DocType),
	})
}

func (c *Controller) onExported(ctx context.Context, fileName string, result *document.ExportResult, duration time.Duration) {
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("export succeeded",
		logging.String("file_name", fileName),
		logging.String("sheet_url", result.SheetURL),
		logging.Duration("duration", duration),
	)
	c.publish(ctx, notifications.EventExportCompleted, notifications.Payload{
		"fileName": fileName,
		"message":  result.Message,
		"sheetURL": result.SheetURL,
	})
}

func (c *Controller) onFailure(ctx context.Context, label string, err error) {
	logger := logging.WithContext(ctx, c.logger)
	hint := "check the service is reachable and retry"
	switch {
	case errors.Is(err, services.ErrTimeout):
		hint = "the service did not answer in time; retry or raise api.request_timeout_seconds"
	case errors.Is(err, services.ErrMalformedResponse):
		hint = "the service returned an unexpected body; check service version"
	}
	logging.WarnWithContext(logger, "request failed", "request_failed",
		logging.String("operation", label),
		logging.String("error_kind", services.Kind(err)),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "no result was stored; the request can be retried"),
		logging.Error(err),
	)
	c.publish(ctx, notifications.EventError, notifications.Payload{
		"context": label,
		"error":   services.Reason(err),
	})
}

func (c *Controller) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	// The request deadline may already have passed.
	ctx = context.WithoutCancel(ctx)
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, c.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func (c *Controller) record(ctx context.Context, attempt Attempt) {
	if c.recorder == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := c.recorder.Record(ctx, attempt); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "history record failed", "history_record_failed",
			logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
			logging.String(logging.FieldImpact, "this attempt will not appear in history"),
			logging.Error(err),
		)
	}
}
