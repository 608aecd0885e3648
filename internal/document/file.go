package document

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// PDFMimeType is the only MIME type the workflow accepts.
const PDFMimeType = "application/pdf"

// Source opens the content of a candidate file for upload.
type Source interface {
	Open() (io.ReadCloser, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (io.ReadCloser, error)

// Open calls f.
func (f SourceFunc) Open() (io.ReadCloser, error) { return f() }

// PathSource reads content from a filesystem path on every Open.
type PathSource string

// Open opens the file at the path.
func (p PathSource) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

// BytesSource serves an in-memory copy of the content.
type BytesSource []byte

// Open returns a reader over the bytes.
func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// File is a candidate or selected document.
type File struct {
	Name      string
	SizeBytes int64
	MIMEType  string
	// Pages is informational; zero when the count could not be determined.
	Pages  int
	Path   string
	Source Source
}

// IsPDF reports whether the MIME type is exactly application/pdf.
func (f File) IsPDF() bool {
	return f.MIMEType == PDFMimeType
}

// WellFormed reports whether the candidate carries a name, a non-negative
// size, and a content source.
func (f File) WellFormed() bool {
	return strings.TrimSpace(f.Name) != "" && f.SizeBytes >= 0 && f.Source != nil
}
