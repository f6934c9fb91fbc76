package segment

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer turns markdown source into HTML
type Renderer interface {
	Render(source string) (string, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(source string) (string, error)

// Render calls f(source)
func (f RendererFunc) Render(source string) (string, error) { return f(source) }

// Sanitizer strips executable content from HTML or text that ends up in the
// document
type Sanitizer interface {
	Sanitize(s string) string
}

// SanitizerFunc adapts a function to Sanitizer
type SanitizerFunc func(s string) string

// Sanitize calls f(s)
func (f SanitizerFunc) Sanitize(s string) string { return f(s) }

// RenderError reports a block that could not be rendered
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render markdown snippet: %v", e.Err)
}

// Unwrap returns original error
func (e *RenderError) Unwrap() error {
	return e.Err
}

// MarkdownRenderer renders GitHub flavoured markdown with goldmark. Raw HTML
// passes through; the sanitizer is responsible for it.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer creates a goldmark based renderer
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldhtml.WithUnsafe()),
		),
	}
}

// Render converts markdown to HTML
func (r *MarkdownRenderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	defaultRendererOnce sync.Once
	defaultRenderer     *MarkdownRenderer

	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// DefaultRenderer returns the shared goldmark renderer
func DefaultRenderer() Renderer {
	defaultRendererOnce.Do(func() {
		defaultRenderer = NewMarkdownRenderer()
	})
	return defaultRenderer
}

// DefaultSanitizer returns the shared bluemonday policy: user generated
// content rules plus language classes on code blocks.
func DefaultSanitizer() Sanitizer {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#-]+$`)).OnElements("code")
		p.AllowAttrs("checked", "disabled").OnElements("input")
		p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
		p.AllowElements("input")
		policy = p
	})
	return policy
}

// TextEscaper escapes every markup character, the way text assigned to a DOM
// node's textContent is escaped. html.UnescapeString recovers the input
// exactly.
func TextEscaper() Sanitizer {
	return SanitizerFunc(html.EscapeString)
}
