package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dealdesk/internal/config"
	"dealdesk/internal/testsupport"
)

const (
	loiBody    = `{"processing_id":"proc-1","filename":"report.pdf","doc_type":"loi","extracted_data":{"deal_summary":{"deal_name":"Project Atlas","target_company":"Sunfield Energy","buyer":null,"deal_size_usd":"250000000"},"metadata":{"deal_id":"D-1"}},"status":"processed"}`
	exportBody = `{"status":"success","message":"Exported 12 rows","sheet_url":"https://docs.google.com/spreadsheets/d/abc"}`
)

// fakeService mimics the extraction and export endpoints.
type fakeService struct {
	mu           sync.Mutex
	uploadStatus int
	uploads      int
	exports      int
	exported     []byte
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/upload":
		f.uploads++
		if f.uploadStatus != 0 && f.uploadStatus != http.StatusOK {
			w.WriteHeader(f.uploadStatus)
			_, _ = io.WriteString(w, `{"detail":"Error processing document"}`)
			return
		}
		_, _ = io.WriteString(w, loiBody)
	case "/export-to-sheets":
		f.exports++
		f.exported, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, exportBody)
	case "/health":
		_, _ = io.WriteString(w, `{"status":"healthy","timestamp":"2026-03-01T12:00:00"}`)
	case "/supported-formats":
		_, _ = io.WriteString(w, `{"file_formats":["pdf"],"document_types":["loi","spa","press_release"]}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.exports
}

type cliTestEnv struct {
	cfg        *config.Config
	service    *fakeService
	server     *httptest.Server
	configPath string
	workDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	service := &fakeService{}
	server := httptest.NewServer(service)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL))
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("DEALDESK_API_URL", "")
	t.Setenv("DEALDESK_NTFY_TOPIC", "")

	workDir := filepath.Join(base, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatalf("mkdir work: %v", err)
	}
	t.Chdir(workDir)

	configPath := filepath.Join(homeDir, ".config", "dealdesk", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		service:    service,
		server:     server,
		configPath: configPath,
		workDir:    workDir,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[api]
base_url = %q

[paths]
state_dir = %q
log_dir = %q
snapshot_dir = %q

[history]
enabled = %t
path = %q

[notifications]
ntfy_topic = %q

[logging]
level = "error"
`,
		cfg.API.BaseURL,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.SnapshotDir,
		cfg.History.Enabled,
		cfg.History.Path,
		cfg.Notifications.NtfyTopic,
	)
	testsupport.WriteBytes(t, path, []byte(content))
}

func (e *cliTestEnv) pdf(t *testing.T, name string) string {
	t.Helper()
	return testsupport.WritePDF(t, e.workDir, name)
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
