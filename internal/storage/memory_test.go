package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	data := []byte("%PDF-1.4")
	if err := s.Upload(ctx, "documents/a/1/report.pdf", data, "application/pdf"); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	data[0] = 'X'

	got, err := s.Download(ctx, "documents/a/1/report.pdf")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("Expected stored copy to be unaffected, got %q", got)
	}

	if err := s.Delete(ctx, "documents/a/1/report.pdf"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := s.Download(ctx, "documents/a/1/report.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping returned error: %v", err)
	}
}
