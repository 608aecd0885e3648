package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dealdesk/internal/document"
	"dealdesk/internal/notifications"
	"dealdesk/internal/workflow"
)

const loiBody = `{"processing_id":"proc-1","filename":"report.pdf","doc_type":"loi","extracted_data":{"deal_summary":{"deal_name":"Project Atlas","target_company":"Sunfield Energy","buyer":null,"deal_size_usd":"250000000"}},"status":"processed"}`

func pdfCandidate(name string) document.File {
	content := []byte("%PDF-1.4\n%%EOF\n")
	return document.File{
		Name:      name,
		SizeBytes: int64(len(content)),
		MIMEType:  document.PDFMimeType,
		Source:    document.BytesSource(content),
	}
}

func mustParse(t *testing.T, body string) *document.ExtractionResult {
	t.Helper()
	result, err := document.ParseExtractionResult([]byte(body))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return result
}

// fakeBackend answers with the configured functions and counts calls.
type fakeBackend struct {
	mu           sync.Mutex
	extractCalls int
	exportCalls  int
	extracted    []string
	exported     []*document.ExtractionResult

	extract func(ctx context.Context, file document.File) (*document.ExtractionResult, error)
	export  func(ctx context.Context, result *document.ExtractionResult) (*document.ExportResult, error)
}

func (f *fakeBackend) Extract(ctx context.Context, file document.File) (*document.ExtractionResult, error) {
	f.mu.Lock()
	f.extractCalls++
	f.extracted = append(f.extracted, file.Name)
	fn := f.extract
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, file)
}

func (f *fakeBackend) Export(ctx context.Context, result *document.ExtractionResult) (*document.ExportResult, error) {
	f.mu.Lock()
	f.exportCalls++
	f.exported = append(f.exported, result)
	fn := f.export
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, result)
}

func (f *fakeBackend) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extractCalls, f.exportCalls
}

type stubRecorder struct {
	mu       sync.Mutex
	attempts []workflow.Attempt
}

func (s *stubRecorder) Record(_ context.Context, attempt workflow.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *stubRecorder) snapshot() []workflow.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]workflow.Attempt(nil), s.attempts...)
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) snapshot() []notifications.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Event(nil), s.events...)
}

func waitTask(t *testing.T, task *workflow.Task) error {
	t.Helper()
	if task == nil {
		t.Fatal("expected a task")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatal("task did not finish in time")
	}
	return err
}

// extractedController returns a controller holding a successful LOI extraction.
func extractedController(t *testing.T, backend *fakeBackend, opts ...workflow.Option) *workflow.Controller {
	t.Helper()
	if backend.extract == nil {
		backend.extract = func(context.Context, document.File) (*document.ExtractionResult, error) {
			return mustParse(t, loiBody), nil
		}
	}
	c := workflow.NewController(backend, opts...)
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	return c
}
