package history

import (
	"database/sql"
	"time"

	"dealdesk/internal/workflow"
)

const entryColumns = "id, request_id, slot, file_name, file_size, doc_type, processing_id, sheet_url, outcome, error_kind, error_message, started_at, duration_ms"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		id           string
		requestID    sql.NullString
		slot         string
		fileName     sql.NullString
		fileSize     int64
		docType      sql.NullString
		processingID sql.NullString
		sheetURL     sql.NullString
		outcome      string
		errorKind    sql.NullString
		errorMessage sql.NullString
		startedRaw   string
		durationMS   int64
	)
	if err := scanner.Scan(
		&id,
		&requestID,
		&slot,
		&fileName,
		&fileSize,
		&docType,
		&processingID,
		&sheetURL,
		&outcome,
		&errorKind,
		&errorMessage,
		&startedRaw,
		&durationMS,
	); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID: id,
		Attempt: workflow.Attempt{
			Slot:         workflow.Slot(slot),
			RequestID:    requestID.String,
			FileName:     fileName.String,
			FileSize:     fileSize,
			DocType:      docType.String,
			ProcessingID: processingID.String,
			SheetURL:     sheetURL.String,
			Outcome:      workflow.Outcome(outcome),
			ErrorKind:    errorKind.String,
			Error:        errorMessage.String,
			Duration:     time.Duration(durationMS) * time.Millisecond,
		},
	}
	if started, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		entry.StartedAt = started
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
