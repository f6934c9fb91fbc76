package snippet

import (
	"context"

	"github.com/atotto/clipboard"
)

// Clipboard receives copied snippet source
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// ClipboardFunc adapts a function to Clipboard
type ClipboardFunc func(ctx context.Context, text string) error

// WriteText calls f(ctx, text)
func (f ClipboardFunc) WriteText(ctx context.Context, text string) error { return f(ctx, text) }

// SystemClipboard writes to the operating system clipboard
type SystemClipboard struct{}

// WriteText places text on the system clipboard
func (SystemClipboard) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}
