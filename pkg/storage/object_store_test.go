package storage

import (
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := ObjectKey("quarantine", "edu_resource_db_v4", at); got != "quarantine/edu_resource_db_v4-1700000000123.json" {
		t.Fatalf("unexpected key: %q", got)
	}
	if got := ObjectKey("q", "a/b", at); got != "q/a%2Fb-1700000000123.json" {
		t.Fatalf("expected escaped name, got %q", got)
	}
	if got := ObjectKey("q", " ", at); got != "q/document-1700000000123.json" {
		t.Fatalf("expected default name, got %q", got)
	}
}

func TestNewMinioArchiveRequiresEndpointAndBucket(t *testing.T) {
	if _, err := NewMinioArchive(MinioConfig{Bucket: "b"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	if _, err := NewMinioArchive(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
