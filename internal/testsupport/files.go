package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dealdesk/internal/document"
)

// minimalPDF is a single blank page with a valid cross-reference table.
const minimalPDF = "%PDF-1.4\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
	"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n" +
	"xref\n0 4\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000058 00000 n \n" +
	"0000000115 00000 n \n" +
	"trailer\n<< /Size 4 /Root 1 0 R >>\n" +
	"startxref\n186\n%%EOF\n"

// WritePDF writes a minimal one-page PDF to dir/name and returns its path.
func WritePDF(t testing.TB, dir, name string) string {
	t.Helper()
	return WriteBytes(t, filepath.Join(dir, name), []byte(minimalPDF))
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// PDFCandidate writes a minimal PDF to dir/name and probes it into a candidate.
func PDFCandidate(t testing.TB, dir, name string) document.File {
	t.Helper()

	file, err := document.Probe(WritePDF(t, dir, name))
	if err != nil {
		t.Fatalf("probe %s: %v", name, err)
	}
	return file
}
