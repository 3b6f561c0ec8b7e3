// Package markdown turns the Markdown bodies of outgoing mail into
// sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to HTML and strips anything a mail client
// should not execute. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	// support links are first-party
	policy.RequireNoFollowOnLinks(false)

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		policy: policy,
	}
}

// Render returns the sanitized HTML fragment for source.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Document wraps the rendered fragment in a minimal HTML document.
func (r *Renderer) Document(source string) (string, error) {
	fragment, err := r.Render(source)
	if err != nil {
		return "", err
	}
	return "<html><body>" + fragment + "</body></html>", nil
}
