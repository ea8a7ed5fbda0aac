package httpadapter

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/PabloGalante/nota-agent/internal/observability"
)

// Model replies are markdown. Raw HTML in them is not passed through.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.Table,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// renderMarkdown returns the HTML form of text, or "" if it cannot be
// rendered.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		observability.Logger().Warn("markdown render failed", "error", err)
		return ""
	}
	return buf.String()
}
