// Package snippet keeps the view state of rendered markdown snippets: which
// of them show rendered HTML, which show their raw source, and which copy
// buttons are showing the transient confirmation.
package snippet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/segment"
)

// State is the view state of one snippet
type State int

const (
	Rendered State = iota
	Raw
)

func (s State) String() string {
	if s == Raw {
		return "raw"
	}
	return "rendered"
}

const (
	ShowRawLabel      = "Show raw"
	ShowRenderedLabel = "Show rendered"
	CopyLabel         = "Copy"
	CopiedLabel       = "Copied!"

	DefaultCopyFeedback = 2 * time.Second
)

var (
	ErrNotFound             = errors.New("snippet not found")
	ErrNotMarkdown          = errors.New("fragment is not a markdown block")
	ErrClipboardUnsupported = errors.New("clipboard not supported on this system")
)

// View is what a renderer needs to draw a snippet
type View struct {
	ID           string `json:"id"`
	State        State  `json:"-"`
	Content      string `json:"content"`
	ToggleLabel  string `json:"toggleLabel"`
	CopyLabel    string `json:"copyLabel"`
	CopyDisabled bool   `json:"copyDisabled"`
}

type entry struct {
	raw     string
	state   State
	content string
	copied  bool
	timer   *time.Timer
	gen     uint64
	// ver counts state transitions
	ver uint64
}

func (e *entry) view(id string) View {
	v := View{
		ID:          id,
		State:       e.state,
		Content:     e.content,
		ToggleLabel: ShowRawLabel,
		CopyLabel:   CopyLabel,
	}
	if e.state == Raw {
		v.ToggleLabel = ShowRenderedLabel
	}
	if e.copied {
		v.CopyLabel = CopiedLabel
		v.CopyDisabled = true
	}
	return v
}

// Controller owns the state records of the snippets in one conversation view
type Controller struct {
	mu      sync.Mutex
	entries map[string]*entry

	renderer  segment.Renderer
	sanitizer segment.Sanitizer
	clipboard Clipboard
	feedback  time.Duration
	alert     func(msg string)
	onChange  func(View)
	rawView   func(escaped string) string
	newID     func() string
}

// Option customises a Controller
type Option func(*Controller)

// WithRenderer sets the renderer used when switching back to Rendered
func WithRenderer(r segment.Renderer) Option {
	return func(c *Controller) { c.renderer = r }
}

// WithSanitizer sets the sanitizer applied to re-rendered HTML
func WithSanitizer(s segment.Sanitizer) Option {
	return func(c *Controller) { c.sanitizer = s }
}

// WithClipboard sets the clipboard Copy writes to
func WithClipboard(cb Clipboard) Option {
	return func(c *Controller) { c.clipboard = cb }
}

// WithCopyFeedback sets how long the copy confirmation stays up
func WithCopyFeedback(d time.Duration) Option {
	return func(c *Controller) { c.feedback = d }
}

// WithAlert sets the user facing notification for copy failures
func WithAlert(fn func(msg string)) Option {
	return func(c *Controller) { c.alert = fn }
}

// WithOnChange registers a callback invoked after a snippet's view changes
// outside a direct call, i.e. when a copy confirmation expires.
func WithOnChange(fn func(View)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithRawView sets how raw source is presented. The default is RawHTML.
func WithRawView(fn func(escaped string) string) Option {
	return func(c *Controller) { c.rawView = fn }
}

// NewController creates a controller. Without options it renders with the
// segment defaults and copies to the system clipboard.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		entries:  make(map[string]*entry),
		feedback: DefaultCopyFeedback,
		rawView:  RawHTML,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, o := range opts {
		o(c)
	}
	if c.renderer == nil {
		c.renderer = segment.DefaultRenderer()
	}
	if c.sanitizer == nil {
		c.sanitizer = segment.DefaultSanitizer()
	}
	if c.clipboard == nil {
		c.clipboard = SystemClipboard{}
	}
	return c
}

// NewID returns a fresh snippet id. It fits Markup when no controller keeps
// the state, as in the web frontend.
func NewID(segment.Fragment) string {
	return uuid.Must(uuid.NewV7()).String()
}

// Register creates the state record for a markdown fragment. New snippets
// start Rendered.
func (c *Controller) Register(f segment.Fragment) (View, error) {
	if f.Kind != segment.MarkdownBlock {
		return View{}, ErrNotMarkdown
	}
	e := &entry{
		raw:     EncodeRaw(f.RawSource),
		state:   Rendered,
		content: f.HTML,
	}
	if f.Err != nil || f.Error != "" {
		e.content = c.rawView(f.RawSource)
	}

	id := c.newID()
	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
	return e.view(id), nil
}

// Markup registers every block of fragments and returns the message HTML
func (c *Controller) Markup(fragments []segment.Fragment) string {
	return Markup(fragments, func(f segment.Fragment) string {
		v, err := c.Register(f)
		if err != nil {
			return NewID(f)
		}
		return v.ID
	})
}

// View returns the current view of a snippet
func (c *Controller) View(id string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return View{}, ErrNotFound
	}
	return e.view(id), nil
}

// Toggle flips a snippet between Rendered and Raw. Going back to Rendered
// renders the stored source again instead of reusing an earlier result.
// Concurrent toggles each apply one transition.
func (c *Controller) Toggle(id string) (View, error) {
	for {
		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok {
			c.mu.Unlock()
			return View{}, ErrNotFound
		}
		raw, state, ver := e.raw, e.state, e.ver
		c.mu.Unlock()

		next, content, err := c.transition(raw, state)
		if err != nil {
			return View{}, fmt.Errorf("toggle snippet %s: %w", id, err)
		}

		c.mu.Lock()
		e, ok = c.entries[id]
		if !ok {
			c.mu.Unlock()
			return View{}, ErrNotFound
		}
		if e.ver != ver {
			// another toggle won the race, start over from its state
			c.mu.Unlock()
			continue
		}
		e.state, e.content = next, content
		e.ver++
		v := e.view(id)
		c.mu.Unlock()
		return v, nil
	}
}

// transition computes the state and content that follow state
func (c *Controller) transition(raw string, state State) (State, string, error) {
	decoded, err := DecodeRaw(raw)
	if err != nil {
		return state, "", err
	}
	if state == Rendered {
		return Raw, c.rawView(decoded), nil
	}
	src := segment.StripFormatPrefix(SourceText(decoded))
	out, err := c.renderer.Render(src)
	if err != nil {
		return state, "", &segment.RenderError{Err: err}
	}
	return Rendered, c.sanitizer.Sanitize(out), nil
}

// Copy writes the snippet source to the clipboard. On success the copy
// label shows the confirmation for the feedback interval; a second copy
// before it expires restarts the interval. Failures are logged, passed to
// the alert callback and returned; the view does not change.
func (c *Controller) Copy(ctx context.Context, id string) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	raw := e.raw
	c.mu.Unlock()

	decoded, err := DecodeRaw(raw)
	if err == nil {
		err = c.clipboard.WriteText(ctx, SourceText(decoded))
	}
	if err != nil {
		logger.Error("SNIPPET", fmt.Sprintf("copy snippet %s failed: %v", id, err))
		if c.alert != nil {
			c.alert("Failed to copy: " + err.Error())
		}
		return fmt.Errorf("copy snippet %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok = c.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.copied = true
	e.timer = time.AfterFunc(c.feedback, func() { c.revert(id, gen) })
	return nil
}

func (c *Controller) revert(id string, gen uint64) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok || e.gen != gen {
		// superseded by a later copy
		c.mu.Unlock()
		return
	}
	e.copied = false
	e.timer = nil
	v := e.view(id)
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(v)
	}
}

// PendingTimers reports how many copy confirmations are waiting to revert
func (c *Controller) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.timer != nil {
			n++
		}
	}
	return n
}

// Remove drops snippets and stops their timers. Without ids every snippet is
// removed.
func (c *Controller) Remove(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		for id := range c.entries {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if e, ok := c.entries[id]; ok {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(c.entries, id)
		}
	}
}

// IDs returns the ids of the registered snippets in no particular order
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
