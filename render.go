package parley

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// mdRenderer converts assistant Markdown to HTML for host pages.
// Raw HTML in model output is never passed through.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts an assistant message's Markdown content to HTML.
// Hosts embedding the transcript in a web page can render assistant
// replies through this instead of showing raw Markdown. On conversion
// failure the input is returned escaped.
func RenderHTML(md string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return escapeHTML(md)
	}
	return strings.TrimSpace(buf.String())
}

// escapeHTML escapes <, >, & for safe embedding.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
