package document

import (
	"context"
	"testing"
)

func TestRunMissingPath(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing path argument")
	}
}

func TestRunFileNotFound(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), map[string]any{"path": "/nonexistent/file.pdf"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractEmpty(t *testing.T) {
	if _, err := Extract(nil); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestExtractNotPDF(t *testing.T) {
	if _, err := Extract([]byte("this is not a pdf")); err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
}

func TestDefinition(t *testing.T) {
	def := Definition()
	if def.Name != "read_document" {
		t.Errorf("Name = %q, want read_document", def.Name)
	}
	if len(def.InputSchema) == 0 {
		t.Error("InputSchema should not be empty")
	}
}
