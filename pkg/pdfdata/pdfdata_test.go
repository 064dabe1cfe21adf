package pdfdata

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := minimalPDF()
	uri := Encode(data)
	if !strings.HasPrefix(uri, "data:application/pdf;base64,") {
		t.Fatalf("unexpected uri prefix: %.40s", uri)
	}
	got, err := Decode(uri)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("payload mismatch")
	}
}

func TestDecodeRejects(t *testing.T) {
	if _, err := Decode("#"); !errors.Is(err, ErrPlaceholder) {
		t.Fatalf("expected placeholder, got %v", err)
	}
	if _, err := Decode("https://example.com/a.pdf"); !errors.Is(err, ErrPlaceholder) {
		t.Fatalf("expected placeholder for remote url, got %v", err)
	}
	if _, err := Decode("data:application/pdf;base64"); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected invalid uri, got %v", err)
	}
	if _, err := Decode("data:application/pdf,%25PDF"); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected invalid uri for non-base64, got %v", err)
	}
	if _, err := Decode("data:application/pdf;base64,!!!"); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected invalid uri for bad base64, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	pages, err := Validate(minimalPDF())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if pages != 1 {
		t.Fatalf("expected one page, got %d", pages)
	}
	if _, err := Validate([]byte("hello world")); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected not pdf, got %v", err)
	}
	if _, err := Validate([]byte("%PDF-1.4\ngarbage")); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected not pdf for truncated file, got %v", err)
	}
	big := append([]byte("%PDF-1.4\n"), make([]byte, MaxUploadBytes)...)
	if _, err := Validate(big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
}

func TestDownloadName(t *testing.T) {
	cases := map[string]string{
		"Introduction to Algorithms": "introduction_to_algorithms.pdf",
		"C++ Primer (5th Ed.)":       "c___primer__5th_ed__.pdf",
		"Économie":                   "_conomie.pdf",
	}
	for in, want := range cases {
		if got := DownloadName(in); got != want {
			t.Fatalf("DownloadName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !IsPlaceholder("#") || !IsPlaceholder("") || IsPlaceholder(Encode([]byte("x"))) {
		t.Fatalf("unexpected placeholder classification")
	}
}
