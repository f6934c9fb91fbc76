package snippet

import (
	"bytes"
	"html"
	"html/template"
	"net/url"
	"strings"

	"github.com/tk103331/eino-chatlab/segment"
)

// EncodeRaw percent-encodes s so the payload survives attribute embedding.
// The output decodes with decodeURIComponent in the browser and DecodeRaw
// here.
func EncodeRaw(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// DecodeRaw reverses EncodeRaw
func DecodeRaw(s string) (string, error) {
	return url.PathUnescape(s)
}

var messageTmpl = template.Must(template.New("message").Parse(
	`{{range .}}{{if .Block}}<div class="md-snippet" data-snippet-id="{{.ID}}" data-state="{{.State}}" data-raw="{{.Raw}}">` +
		`<div class="md-snippet-toolbar">` +
		`<button type="button" class="md-snippet-toggle" data-action="toggle">{{.ToggleLabel}}</button>` +
		`<button type="button" class="md-snippet-copy" data-action="copy">{{.CopyLabel}}</button>` +
		`</div>` +
		`<div class="md-snippet-content">{{.Content}}</div>` +
		`</div>{{else}}<span class="plain-text">{{.Text}}</span>{{end}}{{end}}`))

type markupItem struct {
	Block       bool
	ID          string
	State       State
	Raw         string
	ToggleLabel string
	CopyLabel   string
	Content     template.HTML
	Text        string
}

// Markup renders a segmented message as HTML. Each block becomes a snippet
// container in the Rendered state; id names it, usually through
// Controller.Register or a fresh uuid.
func Markup(fragments []segment.Fragment, id func(segment.Fragment) string) string {
	items := make([]markupItem, 0, len(fragments))
	for _, f := range fragments {
		if f.Kind != segment.MarkdownBlock {
			items = append(items, markupItem{Text: f.Text})
			continue
		}
		items = append(items, markupItem{
			Block:       true,
			ID:          id(f),
			State:       Rendered,
			Raw:         EncodeRaw(f.RawSource),
			ToggleLabel: ShowRawLabel,
			CopyLabel:   CopyLabel,
			// HTML was sanitized and RawSource escaped in segment.
			Content: template.HTML(renderedOrRaw(f)),
		})
	}

	var buf bytes.Buffer
	if err := messageTmpl.Execute(&buf, items); err != nil {
		// only reachable on a writer error, which bytes.Buffer never returns
		return ""
	}
	return buf.String()
}

func renderedOrRaw(f segment.Fragment) string {
	if f.Err != nil || f.Error != "" {
		return RawHTML(f.RawSource)
	}
	return f.HTML
}

// RawHTML shows escaped source as preformatted text. Markup in the source
// is displayed, not interpreted.
func RawHTML(escapedSource string) string {
	return `<pre class="md-snippet-raw">` + html.EscapeString(SourceText(escapedSource)) + `</pre>`
}

// SourceText turns an escaped raw payload back into the exact text the
// model wrote.
func SourceText(escapedSource string) string {
	return html.UnescapeString(escapedSource)
}
