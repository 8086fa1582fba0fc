// ABOUTME: Renders card descriptions from markdown to HTML with goldmark.
package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

// RenderMarkdown converts markdown to HTML. goldmark drops raw HTML by
// default; on a conversion error the escaped input is returned.
func RenderMarkdown(input string) string {
	if input == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return template.HTMLEscapeString(input)
	}
	return buf.String()
}
