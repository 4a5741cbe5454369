// Package document provides a tool runner that extracts plain text from
// local PDF files.
//
// It uses ledongthuc/pdf (BSD-3, pure Go, no CGO) for text extraction.
// This is a separate subpackage so that the dependency is only pulled in
// by users who register the tool.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	parley "github.com/parley-ai/parley"
)

const maxContentChars = 12000

// Runner extracts text from PDF documents.
type Runner struct{}

// New creates a document Runner.
func New() *Runner {
	return &Runner{}
}

// Definition returns the tool definition to register alongside the runner.
func Definition() parley.RuntimeTool {
	return parley.RuntimeTool{
		ID:          parley.NewID(),
		Name:        "read_document",
		Description: "Extract plain text from a local PDF file. Use for reading reports, contracts, manuals.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"Path to a PDF file"}},"required":["path"]}`),
	}
}

func (r *Runner) Run(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("missing required argument: path")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	text, err := Extract(content)
	if err != nil {
		return nil, err
	}
	if len(text) > maxContentChars {
		text = text[:maxContentChars] + "\n... (truncated)"
	}
	return text, nil
}

// Extract extracts plain text from PDF bytes.
func Extract(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // skip unreadable pages
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("no extractable text in PDF")
	}
	return text.String(), nil
}

// compile-time check
var _ parley.ToolRunner = (*Runner)(nil)
