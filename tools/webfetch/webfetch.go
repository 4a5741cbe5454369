// Package webfetch provides a tool runner that fetches a URL and
// extracts its readable text content.
package webfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	parley "github.com/parley-ai/parley"
)

const maxContentChars = 8000

// Runner fetches URLs and extracts readable content.
type Runner struct {
	client *http.Client
}

// New creates a Runner with a 15-second timeout.
func New() *Runner {
	return &Runner{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Definition returns the tool definition to register alongside the runner.
func Definition() parley.RuntimeTool {
	return parley.RuntimeTool{
		ID:          parley.NewID(),
		Name:        "web_fetch",
		Description: "Fetch a URL and extract its readable text content. Use for reading web pages, articles, documentation.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"URL to fetch"}},"required":["url"]}`),
	}
}

func (r *Runner) Run(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("missing required argument: url")
	}

	content, err := r.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "\n... (truncated)"
	}
	return content, nil
}

// Fetch downloads a URL and extracts readable text.
func (r *Runner) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ParleyBot/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	html := string(body)

	// Try readability extraction
	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err == nil && article.TextContent != "" {
		return strings.TrimSpace(article.TextContent), nil
	}

	// Fallback: crude tag stripping
	return stripTags(html), nil
}

// stripTags removes markup and collapses whitespace. Script and style
// bodies are dropped entirely.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	skipDepth := 0
	lower := strings.ToLower(s)
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '<' {
			rest := lower[i:]
			switch {
			case strings.HasPrefix(rest, "<script"), strings.HasPrefix(rest, "<style"):
				skipDepth++
			case strings.HasPrefix(rest, "</script"), strings.HasPrefix(rest, "</style"):
				if skipDepth > 0 {
					skipDepth--
				}
			}
			inTag = true
			i++
			continue
		}
		if c == '>' {
			inTag = false
			b.WriteByte(' ')
			i++
			continue
		}
		if !inTag && skipDepth == 0 {
			b.WriteByte(c)
		}
		i++
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// compile-time check
var _ parley.ToolRunner = (*Runner)(nil)
