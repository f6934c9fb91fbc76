// Package chat is the terminal client for the chat service. Markdown
// snippets are rendered with glamour and can be switched to their raw source
// or copied to the clipboard from the keyboard.
package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/snippet"
)

// ChatApp wires the view model into a bubbletea program
type ChatApp struct {
	program  *tea.Program
	snippets *snippet.Controller
}

// terminal output is not HTML, so nothing is stripped
var keepAll = segment.SanitizerFunc(func(s string) string { return s })

// NewTerminalRenderer renders snippet markdown for a terminal of the given
// width
func NewTerminalRenderer(width int) (segment.Renderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewChatApp creates the terminal chat for one participant. open and close
// are the snippet markers the model uses.
func NewChatApp(ctx context.Context, backend Backend, participantID, open, close string) (*ChatApp, error) {
	renderer, err := NewTerminalRenderer(78)
	if err != nil {
		return nil, err
	}

	seg := segment.New(
		segment.WithDelimiters(open, close),
		segment.WithRenderer(renderer),
		segment.WithSanitizer(keepAll),
	)

	app := &ChatApp{}
	app.snippets = snippet.NewController(
		snippet.WithRenderer(renderer),
		snippet.WithSanitizer(keepAll),
		snippet.WithClipboard(snippet.SystemClipboard{}),
		snippet.WithRawView(snippet.SourceText),
		snippet.WithOnChange(func(snippet.View) {
			if app.program != nil {
				app.program.Send(SnippetChangedMsg{})
			}
		}),
	)

	vm := NewViewModel(ctx, backend, participantID, seg, app.snippets)
	app.program = tea.NewProgram(vm, tea.WithAltScreen(), tea.WithContext(ctx))
	return app, nil
}

// Run runs the program until the user quits
func (app *ChatApp) Run() error {
	defer app.snippets.Remove()
	_, err := app.program.Run()
	return err
}

// Stop quits the program
func (app *ChatApp) Stop() {
	if app.program != nil {
		app.program.Quit()
	}
}
