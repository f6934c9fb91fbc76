// Package segment splits a raw model response into plain prose and the
// markdown snippets the model wrapped in delimiter markers.
//
// The wire contract with the model is a pair of literal markers, by default
// <mdsnippet> and </mdsnippet>. Markers do not nest. Anything malformed is
// treated as plain text; Segment never fails and never drops content.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultOpen  = "<mdsnippet>"
	DefaultClose = "</mdsnippet>"
)

// Kind identifies the type of a fragment
type Kind int

const (
	PlainText Kind = iota
	MarkdownBlock
)

func (k Kind) String() string {
	switch k {
	case PlainText:
		return "text"
	case MarkdownBlock:
		return "markdown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as "text" or "markdown"
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Fragment is one unit of a segmented response
type Fragment struct {
	Kind Kind `json:"kind"`

	// Text is the prose of a PlainText fragment.
	Text string `json:"text,omitempty"`

	// RawSource is the block content before the format character strip,
	// escaped as text so no markup in it is live. HTML is the sanitized
	// rendering.
	RawSource string `json:"raw,omitempty"`
	HTML      string `json:"html,omitempty"`

	// Markdown is the content that was rendered.
	Markdown string `json:"-"`

	// Source is the exact input span the fragment came from, markers
	// included for blocks.
	Source string `json:"-"`

	// Err is set when rendering this block failed.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// SourceText returns the part of the input this fragment covers
func (f Fragment) SourceText() string {
	if f.Kind == PlainText {
		return f.Text
	}
	return f.Source
}

// Segmenter scans responses for one delimiter pair
type Segmenter struct {
	open      string
	close     string
	renderer  Renderer
	sanitizer Sanitizer
	escaper   Sanitizer
}

// Option customises a Segmenter
type Option func(*Segmenter)

// WithDelimiters sets the open and close markers. Empty values keep the
// defaults.
func WithDelimiters(open, close string) Option {
	return func(s *Segmenter) {
		if open != "" {
			s.open = open
		}
		if close != "" {
			s.close = close
		}
	}
}

// WithRenderer replaces the markdown renderer
func WithRenderer(r Renderer) Option {
	return func(s *Segmenter) { s.renderer = r }
}

// WithSanitizer replaces the sanitizer applied to rendered block HTML
func WithSanitizer(z Sanitizer) Option {
	return func(s *Segmenter) { s.sanitizer = z }
}

// WithSourceEscaper replaces how raw block source is made safe to embed. It
// must be reversible by html.UnescapeString.
func WithSourceEscaper(z Sanitizer) Option {
	return func(s *Segmenter) { s.escaper = z }
}

// New creates a Segmenter with the goldmark renderer and the bluemonday
// sanitizer unless options say otherwise.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		open:  DefaultOpen,
		close: DefaultClose,
	}
	for _, o := range opts {
		o(s)
	}
	if s.renderer == nil {
		s.renderer = DefaultRenderer()
	}
	if s.sanitizer == nil {
		s.sanitizer = DefaultSanitizer()
	}
	if s.escaper == nil {
		s.escaper = TextEscaper()
	}
	return s
}

// Renderer returns the renderer blocks are rendered with
func (s *Segmenter) Renderer() Renderer { return s.renderer }

// Sanitizer returns the sanitizer applied to blocks
func (s *Segmenter) Sanitizer() Sanitizer { return s.sanitizer }

// Delimiters returns the open and close markers
func (s *Segmenter) Delimiters() (open, close string) { return s.open, s.close }

var defaultSegmenter = New()

// Segment splits raw with the default markers, renderer and sanitizer
func Segment(raw string) []Fragment {
	return defaultSegmenter.Segment(raw)
}

// Segment splits raw into fragments in order of appearance.
//
// Gaps between blocks are kept as-is, whitespace included. Only the text
// after the last block is trimmed before the emptiness check.
func (s *Segmenter) Segment(raw string) []Fragment {
	var fragments []Fragment
	pos := 0

	for {
		start := strings.Index(raw[pos:], s.open)
		if start < 0 {
			break
		}
		start += pos
		contentStart := start + len(s.open)

		end := strings.Index(raw[contentStart:], s.close)
		if end < 0 {
			// unterminated: the rest stays plain text
			break
		}
		end += contentStart
		spanEnd := end + len(s.close)

		if gap := raw[pos:start]; gap != "" {
			fragments = append(fragments, Fragment{Kind: PlainText, Text: gap})
		}
		fragments = append(fragments, s.block(raw[contentStart:end], raw[start:spanEnd]))
		pos = spanEnd
	}

	if tail := strings.TrimSpace(raw[pos:]); tail != "" {
		fragments = append(fragments, Fragment{Kind: PlainText, Text: tail})
	}
	return fragments
}

func (s *Segmenter) block(content, span string) Fragment {
	markdown := StripFormatPrefix(content)
	f := Fragment{
		Kind:      MarkdownBlock,
		RawSource: s.escaper.Sanitize(content),
		Markdown:  markdown,
		Source:    span,
	}

	rendered, err := s.renderer.Render(markdown)
	if err != nil {
		f.Err = &RenderError{Err: err}
		f.Error = f.Err.Error()
		return f
	}
	f.HTML = s.sanitizer.Sanitize(rendered)
	return f
}

// StripFormatPrefix removes a single leading Unicode format character
// (zero-width space, byte order mark, joiners) left behind by copy-paste.
func StripFormatPrefix(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size > 0 && r != utf8.RuneError && unicode.Is(unicode.Cf, r) {
		return s[size:]
	}
	return s
}
