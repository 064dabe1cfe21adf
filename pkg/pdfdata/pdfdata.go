// Package pdfdata handles book payloads embedded as data: URIs.
package pdfdata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"eduportal/pkg/domain"
)

// MaxUploadBytes caps a single uploaded PDF.
const MaxUploadBytes = 5 * 1024 * 1024

const mimePDF = "application/pdf"

var (
	ErrTooLarge    = errors.New("File is too large for the demo storage (Max 5MB).")
	ErrNotPDF      = errors.New("file is not a readable PDF")
	ErrPlaceholder = errors.New("No readable PDF file available for this book (This might be mock data).")
	ErrInvalidURI  = errors.New("invalid data uri")
)

// Encode wraps raw PDF bytes in a base64 data URI.
func Encode(data []byte) string {
	return "data:" + mimePDF + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode extracts the payload of a base64 data URI. The placeholder marker
// and any non-data reference yield ErrPlaceholder.
func Decode(uri string) ([]byte, error) {
	if IsPlaceholder(uri) {
		return nil, ErrPlaceholder
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrInvalidURI)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	return data, nil
}

// IsPlaceholder reports whether a book carries no downloadable payload.
func IsPlaceholder(uri string) bool {
	return uri == "" || uri == domain.PlaceholderPDF || !strings.HasPrefix(uri, "data:")
}

// Validate checks the size cap and that data parses as a PDF with at least
// one page. It returns the page count.
func Validate(data []byte) (pages int, err error) {
	if len(data) > MaxUploadBytes {
		return 0, ErrTooLarge
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, fmt.Errorf("%w: missing header", ErrNotPDF)
	}
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	pages = reader.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return pages, nil
}

// DownloadName derives the attachment filename from a book title: ASCII
// letters and digits are lowercased, everything else becomes an underscore.
func DownloadName(title string) string {
	var sb strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(r + ('a' - 'A'))
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String() + ".pdf"
}
