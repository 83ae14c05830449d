// Package sink implements CommandSink adapters: a structured log line, the
// requirement tracker, and a fan-out over several sinks.
package sink

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	mdRenderer  goldmark.Markdown
	tagStripper *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))
	tagStripper = bluemonday.StrictPolicy()
}

// PlainText renders comment markdown to a single line of plain text capped at
// limit runes, with an ellipsis when cut. A non-positive limit disables the cap.
// Returns empty string for empty input.
func PlainText(src string, limit int) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	var buf bytes.Buffer
	rendered := src
	if err := mdRenderer.Convert([]byte(src), &buf); err == nil {
		rendered = buf.String()
	}

	// StrictPolicy drops every tag but keeps their text, escaped.
	text := html.UnescapeString(tagStripper.Sanitize(rendered))
	text = strings.Join(strings.Fields(text), " ")

	if limit > 0 && len([]rune(text)) > limit {
		return strings.TrimSpace(string([]rune(text)[:limit])) + "…"
	}
	return text
}
