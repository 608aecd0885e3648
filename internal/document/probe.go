package document

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const sniffLength = 512

// Probe builds a File candidate from a path. The MIME type comes from the
// extension and is replaced by the sniffed content type when the two
// disagree about PDF-ness. Probe never rejects a file for its type; that
// decision belongs to the workflow controller.
func Probe(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	sniffed, err := sniffContentType(path)
	if err != nil {
		return File{}, err
	}

	file := File{
		Name:      filepath.Base(path),
		SizeBytes: info.Size(),
		MIMEType:  resolveMIMEType(filepath.Ext(path), sniffed),
		Path:      path,
		Source:    PathSource(path),
	}
	if file.IsPDF() {
		file.Pages = countPages(path)
	}
	return file, nil
}

func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, sniffLength)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return baseMIMEType(http.DetectContentType(buf[:n])), nil
}

func resolveMIMEType(ext, sniffed string) string {
	byExt := baseMIMEType(mime.TypeByExtension(strings.ToLower(ext)))
	switch {
	case byExt == "":
		return sniffed
	case byExt == PDFMimeType && sniffed != PDFMimeType:
		return sniffed
	case sniffed == PDFMimeType:
		return PDFMimeType
	default:
		return byExt
	}
}

func baseMIMEType(value string) string {
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	return mediaType
}

// countPages is best effort. pdfcpu panics on some damaged files, so a panic
// counts as an unknown page count.
func countPages(path string) (pages int) {
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	n, err := api.PageCountFile(path)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
