package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"dealdesk/internal/document"
	"dealdesk/internal/history"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type processOutput struct {
	File       fileView               `json:"file"`
	Extraction json.RawMessage        `json:"extraction"`
	Export     *document.ExportResult `json:"export,omitempty"`
	Snapshot   string                 `json:"snapshot,omitempty"`
}

type fileView struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	MIMEType  string `json:"mime_type"`
	Pages     int    `json:"pages,omitempty"`
}

func newFileView(file document.File) fileView {
	return fileView{Name: file.Name, SizeBytes: file.SizeBytes, MIMEType: file.MIMEType, Pages: file.Pages}
}

type historyView struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id,omitempty"`
	Slot         string    `json:"slot"`
	FileName     string    `json:"file_name,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	DocType      string    `json:"doc_type,omitempty"`
	ProcessingID string    `json:"processing_id,omitempty"`
	SheetURL     string    `json:"sheet_url,omitempty"`
	Outcome      string    `json:"outcome"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
}

func newHistoryViews(entries []history.Entry) []historyView {
	views := make([]historyView, 0, len(entries))
	for _, e := range entries {
		views = append(views, historyView{
			ID:           e.ID,
			RequestID:    e.RequestID,
			Slot:         string(e.Slot),
			FileName:     e.FileName,
			FileSize:     e.FileSize,
			DocType:      e.DocType,
			ProcessingID: e.ProcessingID,
			SheetURL:     e.SheetURL,
			Outcome:      string(e.Outcome),
			ErrorKind:    e.ErrorKind,
			Error:        e.Error,
			StartedAt:    e.StartedAt,
			DurationMS:   e.Duration.Milliseconds(),
		})
	}
	return views
}
