package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/tool"

	"github.com/tk103331/eino-chatlab/logger"
)

type recorderKey struct{}

type recorder struct {
	mu    sync.Mutex
	calls []ToolCall
}

func withRecorder(ctx context.Context, r *recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

func (r *recorder) add(c ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) list() []ToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ToolCall(nil), r.calls...)
}

// recordedTool notes each call in the request's recorder. A failing tool
// answers the model with the error text instead of aborting the
// conversation.
type recordedTool struct {
	tool.InvokableTool
}

func (t recordedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	name := "unknown"
	if info, err := t.Info(ctx); err == nil {
		name = info.Name
	}

	call := ToolCall{Name: name, Arguments: argumentsInJSON}
	result, err := t.InvokableTool.InvokableRun(ctx, argumentsInJSON, opts...)
	if err != nil {
		logger.Warn("TOOL", fmt.Sprintf("tool %s failed: %v", name, err))
		call.Error = err.Error()
		result = fmt.Sprintf("tool %s failed: %v", name, err)
	} else {
		call.Result = result
	}

	if rec, ok := ctx.Value(recorderKey{}).(*recorder); ok {
		rec.add(call)
	}
	return result, nil
}
