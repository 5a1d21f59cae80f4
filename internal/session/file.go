package session

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
)

const pdfMediaType = "application/pdf"

// SelectedFile is the payload the user picked for upload. It is only a
// handle: Open is called once per upload attempt, so the same selection can
// be uploaded again.
type SelectedFile struct {
	Name      string
	MediaType string
	Size      int64
	// Pages is an informational page count; zero when unknown.
	Pages int
	Open  func() (io.ReadCloser, error)
}

// OpenPath selects a file from the local filesystem. Only existence is
// checked; format and size are for the backend to judge.
func OpenPath(path string) (SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SelectedFile{}, fmt.Errorf("selecting %s: %w", path, err)
	}
	if info.IsDir() {
		return SelectedFile{}, fmt.Errorf("selecting %s: is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return SelectedFile{}, fmt.Errorf("selecting %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	mediaType := detectMediaType(path, head[:n])

	sel := SelectedFile{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	if mediaType == pdfMediaType {
		sel.Pages = countPages(f, info.Size())
	}
	return sel, nil
}

// FromBytes selects an in-memory payload, e.g. a browser multipart upload.
// An empty mediaType is sniffed from the content.
func FromBytes(name, mediaType string, data []byte) SelectedFile {
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = detectMediaType(name, data)
	}
	sel := SelectedFile{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
	if mediaType == pdfMediaType {
		sel.Pages = countPages(bytes.NewReader(data), int64(len(data)))
	}
	return sel
}

// detectMediaType sniffs content first and falls back to the extension.
func detectMediaType(name string, head []byte) string {
	const unknown = "application/octet-stream"

	if sniffed, _, err := mime.ParseMediaType(http.DetectContentType(head)); err == nil && sniffed != unknown {
		return sniffed
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return unknown
}

// countPages returns the PDF page count, or 0 if the document cannot be
// read. The parser panics on some malformed inputs.
func countPages(r io.ReaderAt, size int64) (pages int) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("counting pdf pages panicked", "error", rec)
			pages = 0
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		slog.Debug("counting pdf pages", "error", err)
		return 0
	}
	return reader.NumPage()
}
