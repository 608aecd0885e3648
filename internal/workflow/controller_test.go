package workflow_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dealdesk/internal/document"
	"dealdesk/internal/notifications"
	"dealdesk/internal/services"
	"dealdesk/internal/services/entrytool"
	"dealdesk/internal/workflow"
)

func TestNewControllerStartsEmpty(t *testing.T) {
	c := workflow.NewController(&fakeBackend{})
	state := c.State()
	if !state.Empty() || state.Phase != workflow.PhaseIdle {
		t.Fatalf("expected empty idle state, got %+v", state)
	}
}

func TestSelectFileRejectsNonPDF(t *testing.T) {
	tests := []struct {
		name    string
		channel workflow.Channel
		want    string
	}{
		{"picker", workflow.ChannelPicker, "Please select a PDF file"},
		{"drop", workflow.ChannelDrop, "Please drop a PDF file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{}
			c := workflow.NewController(backend)
			png := document.File{Name: "image.png", SizeBytes: 10, MIMEType: "image/png", Source: document.BytesSource("png")}

			err := c.SelectFile(png, tc.channel)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := services.Reason(err); got != tc.want {
				t.Fatalf("reason = %q, want %q", got, tc.want)
			}
			state := c.State()
			if state.SelectedFile != nil {
				t.Fatalf("expected no selected file, got %+v", state.SelectedFile)
			}
			if state.LastError != tc.want {
				t.Fatalf("last error = %q, want %q", state.LastError, tc.want)
			}
			if extracts, exports := backend.calls(); extracts != 0 || exports != 0 {
				t.Fatalf("selection must not call the service: %d %d", extracts, exports)
			}
		})
	}
}

func TestSelectFileRejectsMalformedCandidates(t *testing.T) {
	tests := []struct {
		name string
		file document.File
	}{
		{"nil source", document.File{Name: "a.pdf", SizeBytes: 1, MIMEType: document.PDFMimeType}},
		{"negative size", document.File{Name: "a.pdf", SizeBytes: -5, MIMEType: document.PDFMimeType, Source: document.BytesSource("x")}},
		{"empty name", document.File{SizeBytes: 1, MIMEType: document.PDFMimeType, Source: document.BytesSource("x")}},
		{"mime with parameters", document.File{Name: "a.pdf", SizeBytes: 1, MIMEType: "application/pdf; q=1", Source: document.BytesSource("x")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := workflow.NewController(&fakeBackend{})
			if err := c.SelectFile(tc.file, workflow.ChannelPicker); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if c.State().SelectedFile != nil {
				t.Fatal("malformed candidate must not be selected")
			}
		})
	}
}

func TestRejectedCandidateKeepsPreviousSelection(t *testing.T) {
	backend := &fakeBackend{}
	c := extractedController(t, backend)

	err := c.SelectFile(document.File{Name: "image.png", SizeBytes: 3, MIMEType: "image/png", Source: document.BytesSource("png")}, workflow.ChannelDrop)
	if err == nil {
		t.Fatal("expected rejection")
	}
	state := c.State()
	if state.SelectedFile == nil || state.SelectedFile.Name != "report.pdf" {
		t.Fatalf("previous selection changed: %+v", state.SelectedFile)
	}
	if state.UploadResult == nil {
		t.Fatal("rejection must not clear the extraction result")
	}
	if state.LastError != "Please drop a PDF file" {
		t.Fatalf("unexpected last error %q", state.LastError)
	}
}

func TestSelectFileClearsResultsAndError(t *testing.T) {
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return &document.ExportResult{Message: "Exported 12 rows", SheetURL: "https://sheets.example.com/d/1"}, nil
		},
	}
	c := extractedController(t, backend)
	task, err := c.SubmitForExport(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExport: %v", err)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if err := c.SelectFile(pdfCandidate("next.pdf"), workflow.ChannelDrop); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	state := c.State()
	if state.SelectedFile == nil || state.SelectedFile.Name != "next.pdf" {
		t.Fatalf("unexpected selection %+v", state.SelectedFile)
	}
	if state.UploadResult != nil || state.ExportResult != nil || state.LastError != "" {
		t.Fatalf("expected cleared results, got %+v", state)
	}
}

func TestSubmitWithoutPrerequisitesIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	c := workflow.NewController(backend)
	var notified int
	c.Subscribe(func(workflow.State) { notified++ })

	task, err := c.SubmitForExtraction(context.Background())
	if task != nil || err != nil {
		t.Fatalf("expected no-op extraction, got %v %v", task, err)
	}
	task, err = c.SubmitForExport(context.Background())
	if task != nil || err != nil {
		t.Fatalf("expected no-op export, got %v %v", task, err)
	}
	if extracts, exports := backend.calls(); extracts != 0 || exports != 0 {
		t.Fatalf("no request expected, got %d %d", extracts, exports)
	}
	if !c.State().Empty() || notified != 0 {
		t.Fatalf("state must not change: %+v notified=%d", c.State(), notified)
	}
}

func TestExportWithoutResultAfterSelectionIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	c := workflow.NewController(backend)
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, err := c.SubmitForExport(context.Background())
	if task != nil || err != nil {
		t.Fatalf("expected no-op export, got %v %v", task, err)
	}
	if _, exports := backend.calls(); exports != 0 {
		t.Fatalf("no export expected, got %d", exports)
	}
}

func TestExtractionStoresParsedBody(t *testing.T) {
	backend := &fakeBackend{}
	c := extractedController(t, backend)

	state := c.State()
	if state.Phase != workflow.PhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase)
	}
	if state.UploadResult == nil {
		t.Fatal("expected extraction result")
	}
	if string(state.UploadResult.Raw()) != loiBody {
		t.Fatalf("result differs from body: %s", state.UploadResult.Raw())
	}
	if document.DocTypeLabel(state.UploadResult.DocType) != "LOI" {
		t.Fatalf("unexpected doc type %q", state.UploadResult.DocType)
	}
	if got := document.DisplayValue(state.UploadResult.Summary.Buyer); got != "N/A" {
		t.Fatalf("buyer display = %q, want N/A", got)
	}
	if state.LastError != "" {
		t.Fatalf("unexpected error %q", state.LastError)
	}
}

func TestSecondSubmitWhileUploadingIsRejected(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		extract: func(ctx context.Context, _ document.File) (*document.ExtractionResult, error) {
			<-release
			return document.ParseExtractionResult([]byte(loiBody))
		},
	}
	c := workflow.NewController(backend)
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}
	if !c.State().Uploading() {
		t.Fatalf("expected uploading, got %s", c.State().Phase)
	}

	if second, err := c.SubmitForExtraction(context.Background()); second != nil || !errors.Is(err, services.ErrConcurrentOperation) {
		t.Fatalf("expected concurrent operation error, got %v %v", second, err)
	}
	if _, err := c.SubmitForExport(context.Background()); !errors.Is(err, services.ErrConcurrentOperation) {
		t.Fatalf("expected export rejection while uploading, got %v", err)
	}
	if err := c.SelectFile(pdfCandidate("other.pdf"), workflow.ChannelPicker); !errors.Is(err, services.ErrConcurrentOperation) {
		t.Fatalf("expected selection rejection while uploading, got %v", err)
	}
	if err := c.DismissUploadResult(); !errors.Is(err, services.ErrConcurrentOperation) {
		t.Fatalf("expected dismiss rejection while uploading, got %v", err)
	}
	if state := c.State(); state.LastError != "" || !state.Uploading() {
		t.Fatalf("rejections must not touch state: %+v", state)
	}

	close(release)
	if err := waitTask(t, task); err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if extracts, _ := backend.calls(); extracts != 1 {
		t.Fatalf("expected exactly one request, got %d", extracts)
	}
}

func TestParallelSubmitsIssueOneRequest(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		extract: func(context.Context, document.File) (*document.ExtractionResult, error) {
			<-release
			return document.ParseExtractionResult([]byte(loiBody))
		},
	}
	c := workflow.NewController(backend)
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		tasks    []*workflow.Task
		rejected int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := c.SubmitForExtraction(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, services.ErrConcurrentOperation) {
					rejected++
				}
				return
			}
			tasks = append(tasks, task)
		}()
	}
	wg.Wait()
	close(release)

	if len(tasks) != 1 || rejected != callers-1 {
		t.Fatalf("expected one task and %d rejections, got %d and %d", callers-1, len(tasks), rejected)
	}
	if err := waitTask(t, tasks[0]); err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if extracts, _ := backend.calls(); extracts != 1 {
		t.Fatalf("expected one request, got %d", extracts)
	}
}

func TestExtractionFailureSetsLastError(t *testing.T) {
	backend := &fakeBackend{
		extract: func(context.Context, document.File) (*document.ExtractionResult, error) {
			return nil, services.Wrap(services.ErrTransport, "entrytool", "extract", "http 503: Service Unavailable", nil)
		},
	}
	c := workflow.NewController(backend)
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}
	if err := waitTask(t, task); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error from task, got %v", err)
	}

	state := c.State()
	if state.LastError != "Upload failed: http 503: Service Unavailable" {
		t.Fatalf("unexpected last error %q", state.LastError)
	}
	if state.Phase != workflow.PhaseIdle || state.UploadResult != nil {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.SelectedFile == nil {
		t.Fatal("failure must keep the selected file for a manual retry")
	}
}

func TestRetryAfterFailureClearsError(t *testing.T) {
	var attempt int
	backend := &fakeBackend{}
	backend.extract = func(context.Context, document.File) (*document.ExtractionResult, error) {
		attempt++
		if attempt == 1 {
			return nil, errors.New("connection reset")
		}
		return document.ParseExtractionResult([]byte(loiBody))
	}
	c := workflow.NewController(backend)
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, _ := c.SubmitForExtraction(context.Background())
	_ = waitTask(t, task)
	if !strings.HasPrefix(c.State().LastError, "Upload failed: ") {
		t.Fatalf("expected failure, got %q", c.State().LastError)
	}

	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("retry rejected: %v", err)
	}
	if c.State().LastError != "" {
		t.Fatalf("starting a request must clear the error, got %q", c.State().LastError)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if c.State().UploadResult == nil {
		t.Fatal("expected result after retry")
	}
}

func TestServerErrorScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"Error processing document"}`)
	}))
	defer server.Close()

	c := workflow.NewController(entrytool.New(entrytool.Config{BaseURL: server.URL}))
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}
	_ = waitTask(t, task)

	state := c.State()
	if !strings.Contains(state.LastError, "Upload failed") {
		t.Fatalf("expected upload failure, got %q", state.LastError)
	}
	if state.Phase != workflow.PhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase)
	}
}

func TestEndToEndWithService(t *testing.T) {
	exportBody := `{"status":"success","message":"Exported 12 rows","sheet_url":"https://docs.google.com/spreadsheets/d/abc"}`
	var forwarded string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			_, _ = io.WriteString(w, loiBody)
		case "/export-to-sheets":
			data, _ := io.ReadAll(r.Body)
			forwarded = string(data)
			_, _ = io.WriteString(w, exportBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := workflow.NewController(entrytool.New(entrytool.Config{BaseURL: server.URL}))
	if err := c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	task, _ := c.SubmitForExtraction(context.Background())
	if err := waitTask(t, task); err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	task, _ = c.SubmitForExport(context.Background())
	if err := waitTask(t, task); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if forwarded != loiBody {
		t.Fatalf("export body differs from extraction body: %s", forwarded)
	}
	state := c.State()
	if state.ExportResult == nil || state.ExportResult.Message != "Exported 12 rows" ||
		state.ExportResult.SheetURL != "https://docs.google.com/spreadsheets/d/abc" {
		t.Fatalf("unexpected export result %+v", state.ExportResult)
	}

	c.Reset()
	if !c.State().Empty() {
		t.Fatalf("reset must clear everything, got %+v", c.State())
	}
}

func TestExportFailureLeavesExportAbsent(t *testing.T) {
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return nil, services.Wrap(services.ErrMalformedResponse, "entrytool", "export", "invalid response body", errors.New("missing sheet_url"))
		},
	}
	c := extractedController(t, backend)
	task, err := c.SubmitForExport(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExport: %v", err)
	}
	if err := waitTask(t, task); !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	state := c.State()
	if state.ExportResult != nil {
		t.Fatalf("export result must stay absent, got %+v", state.ExportResult)
	}
	if state.LastError != "Export failed: invalid response body: missing sheet_url" {
		t.Fatalf("unexpected last error %q", state.LastError)
	}
	if state.UploadResult == nil {
		t.Fatal("export failure must keep the extraction result")
	}
}

func TestExportForwardsCurrentResult(t *testing.T) {
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return &document.ExportResult{Message: "ok", SheetURL: "https://sheets.example.com/d/2"}, nil
		},
	}
	c := extractedController(t, backend)
	want := c.State().UploadResult
	task, _ := c.SubmitForExport(context.Background())
	if err := waitTask(t, task); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(backend.exported) != 1 || backend.exported[0] != want {
		t.Fatalf("export must receive the stored extraction result")
	}
	if task.ExportResult() == nil || task.ExportResult().SheetURL != "https://sheets.example.com/d/2" {
		t.Fatalf("unexpected task export result %+v", task.ExportResult())
	}
}

func TestNewExtractionClearsPreviousExport(t *testing.T) {
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return &document.ExportResult{Message: "ok", SheetURL: "https://sheets.example.com/d/3"}, nil
		},
	}
	c := extractedController(t, backend)
	task, _ := c.SubmitForExport(context.Background())
	_ = waitTask(t, task)
	if c.State().ExportResult == nil {
		t.Fatal("expected export result")
	}

	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("re-extraction rejected: %v", err)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatalf("re-extraction failed: %v", err)
	}
	state := c.State()
	if state.UploadResult == nil || state.ExportResult != nil {
		t.Fatalf("new extraction must drop the old export, got %+v", state)
	}
}

func TestDismissUploadResult(t *testing.T) {
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return &document.ExportResult{Message: "ok", SheetURL: "https://sheets.example.com/d/4"}, nil
		},
	}
	c := extractedController(t, backend)
	task, _ := c.SubmitForExport(context.Background())
	_ = waitTask(t, task)

	if err := c.DismissUploadResult(); err != nil {
		t.Fatalf("DismissUploadResult: %v", err)
	}
	state := c.State()
	if state.SelectedFile == nil || state.SelectedFile.Name != "report.pdf" {
		t.Fatalf("dismiss must keep the selected file, got %+v", state.SelectedFile)
	}
	if state.UploadResult != nil || state.ExportResult != nil {
		t.Fatalf("dismiss must clear both results, got %+v", state)
	}
	if task, err := c.SubmitForExport(context.Background()); task != nil || err != nil {
		t.Fatalf("export after dismiss must be a no-op, got %v %v", task, err)
	}
}

func TestResetFromEveryState(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	blocking := &fakeBackend{
		extract: func(context.Context, document.File) (*document.ExtractionResult, error) {
			<-release
			return nil, errors.New("late")
		},
	}

	tests := []struct {
		name  string
		setup func(t *testing.T) *workflow.Controller
	}{
		{"empty", func(t *testing.T) *workflow.Controller { return workflow.NewController(&fakeBackend{}) }},
		{"error", func(t *testing.T) *workflow.Controller {
			c := workflow.NewController(&fakeBackend{})
			_ = c.SelectFile(document.File{Name: "x.txt", MIMEType: "text/plain", Source: document.BytesSource("x")}, workflow.ChannelPicker)
			return c
		}},
		{"selected", func(t *testing.T) *workflow.Controller {
			c := workflow.NewController(&fakeBackend{})
			_ = c.SelectFile(pdfCandidate("a.pdf"), workflow.ChannelPicker)
			return c
		}},
		{"extracted", func(t *testing.T) *workflow.Controller { return extractedController(t, &fakeBackend{}) }},
		{"uploading", func(t *testing.T) *workflow.Controller {
			c := workflow.NewController(blocking)
			_ = c.SelectFile(pdfCandidate("a.pdf"), workflow.ChannelPicker)
			if _, err := c.SubmitForExtraction(context.Background()); err != nil {
				t.Fatalf("SubmitForExtraction: %v", err)
			}
			return c
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.setup(t)
			c.Reset()
			state := c.State()
			if !state.Empty() || state.Phase != workflow.PhaseIdle {
				t.Fatalf("expected empty idle state, got %+v", state)
			}
		})
	}
}

func TestResetDiscardsStaleExtraction(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		extract: func(context.Context, document.File) (*document.ExtractionResult, error) {
			<-release
			return document.ParseExtractionResult([]byte(loiBody))
		},
	}
	recorder := &stubRecorder{}
	c := workflow.NewController(backend, workflow.WithRecorder(recorder))
	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)
	task, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}

	c.Reset()
	close(release)

	if err := waitTask(t, task); !errors.Is(err, workflow.ErrStaleResponse) {
		t.Fatalf("expected stale response, got %v", err)
	}
	if !c.State().Empty() {
		t.Fatalf("stale response must not touch state, got %+v", c.State())
	}
	attempts := recorder.snapshot()
	if len(attempts) != 1 || attempts[0].Outcome != workflow.OutcomeDiscarded {
		t.Fatalf("expected one discarded attempt, got %+v", attempts)
	}
}

func TestStaleResponseDoesNotOverwriteNewerRequest(t *testing.T) {
	first := make(chan struct{})
	second := make(chan struct{})
	backend := &fakeBackend{
		extract: func(_ context.Context, file document.File) (*document.ExtractionResult, error) {
			if file.Name == "first.pdf" {
				<-first
				return document.ParseExtractionResult([]byte(`{"doc_type":"old","processing_id":"p-old","extracted_data":{}}`))
			}
			<-second
			return document.ParseExtractionResult([]byte(`{"doc_type":"new","processing_id":"p-new","extracted_data":{}}`))
		},
	}
	c := workflow.NewController(backend)
	_ = c.SelectFile(pdfCandidate("first.pdf"), workflow.ChannelPicker)
	oldTask, _ := c.SubmitForExtraction(context.Background())

	c.Reset()
	if err := c.SelectFile(pdfCandidate("second.pdf"), workflow.ChannelPicker); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	newTask, err := c.SubmitForExtraction(context.Background())
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}

	close(first)
	if err := waitTask(t, oldTask); !errors.Is(err, workflow.ErrStaleResponse) {
		t.Fatalf("expected stale response, got %v", err)
	}
	if !c.State().Uploading() {
		t.Fatalf("stale response must not end the newer upload, got %s", c.State().Phase)
	}

	close(second)
	if err := waitTask(t, newTask); err != nil {
		t.Fatalf("new extraction failed: %v", err)
	}
	if got := c.State().UploadResult.ProcessingID; got != "p-new" {
		t.Fatalf("expected newer result, got %q", got)
	}
}

func TestTimeoutSurfacesAsTimedOut(t *testing.T) {
	backend := &fakeBackend{
		extract: func(ctx context.Context, _ document.File) (*document.ExtractionResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := workflow.NewController(backend, workflow.WithTimeout(20*time.Millisecond))
	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)
	task, _ := c.SubmitForExtraction(context.Background())

	if err := waitTask(t, task); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	state := c.State()
	if !strings.HasPrefix(state.LastError, "Upload failed: ") || !strings.Contains(state.LastError, "timed out") {
		t.Fatalf("unexpected last error %q", state.LastError)
	}
	if state.Phase != workflow.PhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase)
	}
}

func TestCallerCancellationDoesNotCancelRequest(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		extract: func(ctx context.Context, _ document.File) (*document.ExtractionResult, error) {
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return document.ParseExtractionResult([]byte(loiBody))
		},
	}
	c := workflow.NewController(backend)
	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)

	ctx, cancel := context.WithCancel(context.Background())
	task, err := c.SubmitForExtraction(ctx)
	if err != nil {
		t.Fatalf("SubmitForExtraction: %v", err)
	}
	cancel()
	close(release)

	if err := waitTask(t, task); err != nil {
		t.Fatalf("request must survive caller cancellation, got %v", err)
	}
	if c.State().UploadResult == nil {
		t.Fatal("expected stored result")
	}
}

func TestTaskWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	backend := &fakeBackend{
		extract: func(context.Context, document.File) (*document.ExtractionResult, error) {
			<-release
			return nil, errors.New("late")
		},
	}
	c := workflow.NewController(backend)
	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)
	task, _ := c.SubmitForExtraction(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wait deadline, got %v", err)
	}
	if task.Err() != nil || task.ExtractionResult() != nil {
		t.Fatal("unfinished task must not report an outcome")
	}
	if !c.State().Uploading() {
		t.Fatal("abandoned wait must not end the request")
	}
}

func TestBackendPanicBecomesFailure(t *testing.T) {
	backend := &fakeBackend{
		extract: func(context.Context, document.File) (*document.ExtractionResult, error) {
			panic("boom")
		},
	}
	c := workflow.NewController(backend)
	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)
	task, _ := c.SubmitForExtraction(context.Background())

	if err := waitTask(t, task); err == nil {
		t.Fatal("expected failure")
	}
	if state := c.State(); !strings.Contains(state.LastError, "boom") || state.Busy() {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestSubscribeReceivesEveryTransition(t *testing.T) {
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return &document.ExportResult{Message: "ok", SheetURL: "https://sheets.example.com/d/5"}, nil
		},
	}
	c := workflow.NewController(backend)
	backend.extract = func(context.Context, document.File) (*document.ExtractionResult, error) {
		return document.ParseExtractionResult([]byte(loiBody))
	}

	var (
		mu     sync.Mutex
		phases []workflow.Phase
	)
	unsubscribe := c.Subscribe(func(s workflow.State) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})

	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)
	task, _ := c.SubmitForExtraction(context.Background())
	_ = waitTask(t, task)
	task, _ = c.SubmitForExport(context.Background())
	_ = waitTask(t, task)
	c.Reset()

	unsubscribe()
	unsubscribe()
	_ = c.SelectFile(pdfCandidate("again.pdf"), workflow.ChannelPicker)

	mu.Lock()
	defer mu.Unlock()
	want := []workflow.Phase{
		workflow.PhaseIdle,
		workflow.PhaseUploading,
		workflow.PhaseIdle,
		workflow.PhaseExporting,
		workflow.PhaseIdle,
		workflow.PhaseIdle,
	}
	if len(phases) != len(want) {
		t.Fatalf("expected %d snapshots, got %v", len(want), phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("snapshot %d phase = %s, want %s (all %v)", i, phases[i], want[i], phases)
		}
	}
}

func TestSubscriberMayCallController(t *testing.T) {
	c := workflow.NewController(&fakeBackend{})
	var resets int
	c.Subscribe(func(s workflow.State) {
		if s.LastError != "" && resets == 0 {
			resets++
			c.Reset()
		}
	})

	_ = c.SelectFile(document.File{Name: "image.png", MIMEType: "image/png", Source: document.BytesSource("x")}, workflow.ChannelPicker)
	if resets != 1 {
		t.Fatalf("expected observer reset, got %d", resets)
	}
	if !c.State().Empty() {
		t.Fatalf("expected reset state, got %+v", c.State())
	}
}

func TestStateSnapshotIsIsolated(t *testing.T) {
	c := workflow.NewController(&fakeBackend{})
	_ = c.SelectFile(pdfCandidate("report.pdf"), workflow.ChannelPicker)

	snap := c.State()
	snap.SelectedFile.Name = "mutated.pdf"
	if got := c.State().SelectedFile.Name; got != "report.pdf" {
		t.Fatalf("snapshot mutation leaked into controller: %q", got)
	}
}

func TestRecorderAndNotifierObserveOutcomes(t *testing.T) {
	recorder := &stubRecorder{}
	notifier := &stubNotifier{}
	backend := &fakeBackend{
		export: func(context.Context, *document.ExtractionResult) (*document.ExportResult, error) {
			return nil, errors.New("sheets quota exceeded")
		},
	}
	c := extractedController(t, backend,
		workflow.WithRecorder(recorder),
		workflow.WithNotifier(notifier),
		workflow.WithRequestIDFunc(func() string { return "req-1" }),
	)
	task, _ := c.SubmitForExport(context.Background())
	_ = waitTask(t, task)

	attempts := recorder.snapshot()
	if len(attempts) != 2 {
		t.Fatalf("expected two attempts, got %+v", attempts)
	}
	upload, export := attempts[0], attempts[1]
	if upload.Slot != workflow.SlotUpload || upload.Outcome != workflow.OutcomeSucceeded ||
		upload.DocType != "loi" || upload.ProcessingID != "proc-1" || upload.FileName != "report.pdf" {
		t.Fatalf("unexpected upload attempt %+v", upload)
	}
	if upload.RequestID != "req-1" {
		t.Fatalf("unexpected request id %q", upload.RequestID)
	}
	if export.Slot != workflow.SlotExport || export.Outcome != workflow.OutcomeFailed ||
		export.Error != "sheets quota exceeded" || export.ErrorKind != "unknown" {
		t.Fatalf("unexpected export attempt %+v", export)
	}

	events := notifier.snapshot()
	if len(events) != 2 || events[0] != notifications.EventExtractionCompleted || events[1] != notifications.EventError {
		t.Fatalf("unexpected events %v", events)
	}
}
