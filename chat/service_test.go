package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/store"
)

type fakeModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	calls     [][]*schema.Message
	tools     []*schema.ToolInfo
}

func (m *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return schema.AssistantMessage("no more responses", nil), nil
	}
	out := m.responses[0]
	m.responses = m.responses[1:]
	return out, nil
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *fakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

func (m *fakeModel) lastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

type fakeTool struct {
	name string
	out  string
	err  error
}

func (t *fakeTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.name,
		Desc: "looks things up",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"q": {Type: schema.String, Desc: "query", Required: true},
		}),
	}, nil
}

func (t *fakeTool) InvokableRun(_ context.Context, args string, _ ...tool.Option) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return t.out + " for " + args, nil
}

func newService(t *testing.T, m *fakeModel, tools ...tool.InvokableTool) (*Service, *store.Store) {
	t.Helper()
	st := store.OpenMemory(t)
	svc, err := New(context.Background(), Options{
		Model:  m,
		Tools:  tools,
		Store:  st,
		System: "be brief",
	})
	require.NoError(t, err)
	return svc, st
}

func roles(msgs []*schema.Message) []schema.RoleType {
	out := make([]schema.RoleType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	m := &fakeModel{responses: []*schema.Message{
		schema.AssistantMessage("Sure:\n<mdsnippet># Demo</mdsnippet>", nil),
	}}
	svc, st := newService(t, m)
	ctx := context.Background()

	reply, err := svc.Chat(ctx, Request{ParticipantID: "p1", Input: "  write a readme  "})
	require.NoError(t, err)
	assert.Equal(t, "Sure:\n<mdsnippet># Demo</mdsnippet>", reply.Message)
	require.Len(t, reply.Fragments, 2)
	assert.Equal(t, segment.MarkdownBlock, reply.Fragments[1].Kind)
	assert.NotEmpty(t, reply.InteractionID)
	assert.Empty(t, reply.ToolCalls)

	sent := m.lastCall()
	assert.Equal(t, []schema.RoleType{schema.System, schema.User}, roles(sent))
	assert.Equal(t, "be brief", sent[0].Content)
	assert.Equal(t, "write a readme", sent[1].Content)

	stored, err := st.ListInteractions(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "write a readme", stored[0].UserInput)
	assert.Equal(t, reply.Message, stored[0].BotResponse)
}

func TestChat_EmptyInput(t *testing.T) {
	svc, _ := newService(t, &fakeModel{})
	_, err := svc.Chat(context.Background(), Request{Input: " \n "})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestChat_StoredHistory(t *testing.T) {
	m := &fakeModel{}
	svc, st := newService(t, m)
	ctx := context.Background()
	require.NoError(t, st.SaveInteraction(ctx, &store.Interaction{ParticipantID: "p1", UserInput: "hi", BotResponse: "hello"}))

	_, err := svc.Chat(ctx, Request{ParticipantID: "p1", Input: "again"})
	require.NoError(t, err)

	sent := m.lastCall()
	assert.Equal(t, []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.User}, roles(sent))
	assert.Equal(t, "hi", sent[1].Content)
	assert.Equal(t, "hello", sent[2].Content)
}

func TestChat_ClientHistoryWins(t *testing.T) {
	m := &fakeModel{}
	svc, st := newService(t, m)
	ctx := context.Background()
	require.NoError(t, st.SaveInteraction(ctx, &store.Interaction{ParticipantID: "p1", UserInput: "stored", BotResponse: "stored"}))

	_, err := svc.Chat(ctx, Request{
		ParticipantID: "p1",
		Input:         "next",
		History: []Turn{
			{Role: "user", Content: "from client"},
			{Role: "assistant", Content: "ok"},
			{Role: "narrator", Content: "ignored"},
		},
	})
	require.NoError(t, err)

	sent := m.lastCall()
	require.Len(t, sent, 4)
	assert.Equal(t, "from client", sent[1].Content)
	assert.Equal(t, "ok", sent[2].Content)
}

func TestChat_CompletionError(t *testing.T) {
	m := &fakeModel{err: errors.New("rate limited")}
	svc, st := newService(t, m)
	ctx := context.Background()

	_, err := svc.Chat(ctx, Request{ParticipantID: "p1", Input: "hi"})
	assert.ErrorIs(t, err, ErrCompletion)
	assert.Contains(t, err.Error(), "rate limited")

	stored, err := st.ListInteractions(ctx, "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestChat_ToolLoop(t *testing.T) {
	m := &fakeModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: "lookup", Arguments: `{"q":"go"}`},
		}}),
		schema.AssistantMessage("Go is a language.", nil),
	}}
	svc, _ := newService(t, m, &fakeTool{name: "lookup", out: "result"})

	reply, err := svc.Chat(context.Background(), Request{ParticipantID: "p1", Input: "what is go"})
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.", reply.Message)

	require.Len(t, m.tools, 1)
	assert.Equal(t, "lookup", m.tools[0].Name)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, ToolCall{Name: "lookup", Arguments: `{"q":"go"}`, Result: `result for {"q":"go"}`}, reply.ToolCalls[0])

	sent := m.lastCall()
	last := sent[len(sent)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, `result for {"q":"go"}`, last.Content)
}

func TestChat_ToolFailureIsReported(t *testing.T) {
	m := &fakeModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: "lookup", Arguments: `{}`},
		}}),
		schema.AssistantMessage("Sorry, lookup is down.", nil),
	}}
	svc, _ := newService(t, m, &fakeTool{name: "lookup", err: errors.New("timeout")})

	reply, err := svc.Chat(context.Background(), Request{Input: "x"})
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "timeout", reply.ToolCalls[0].Error)

	sent := m.lastCall()
	assert.Contains(t, sent[len(sent)-1].Content, "tool lookup failed: timeout")
}

func TestGenerateReadme(t *testing.T) {
	m := &fakeModel{responses: []*schema.Message{
		schema.AssistantMessage("<mdsnippet>\n# chatlab\n</mdsnippet>", nil),
	}}
	svc, st := newService(t, m)
	ctx := context.Background()

	reply, err := svc.GenerateReadme(ctx, store.ProjectInfo{
		ParticipantID:        "p1",
		ProjectName:          " chatlab ",
		AuthorNames:          []string{"Ada", " ", "Linus"},
		ProgrammingLanguages: []string{"Go"},
		ConfigFile:           store.ConfigFile{Name: "go.mod", Content: "module chatlab"},
	})
	require.NoError(t, err)
	require.Len(t, reply.Fragments, 1)
	assert.Equal(t, segment.MarkdownBlock, reply.Fragments[0].Kind)
	assert.NotEmpty(t, reply.ProjectID)

	sent := m.lastCall()
	require.Len(t, sent, 2)
	userPrompt := sent[1].Content
	assert.Contains(t, userPrompt, "Project name: chatlab")
	assert.Contains(t, userPrompt, "Authors: Ada, Linus")
	assert.Contains(t, userPrompt, "Languages: Go")
	assert.Contains(t, userPrompt, "between <mdsnippet> and </mdsnippet>")
	assert.Contains(t, userPrompt, "module chatlab")
	assert.NotContains(t, userPrompt, "GitHub handles")

	saved, err := st.GetProjectInfo(ctx, reply.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "chatlab", saved.ProjectName)
	assert.Equal(t, []string{"Ada", "Linus"}, saved.AuthorNames)

	_, err = svc.GenerateReadme(ctx, store.ProjectInfo{ProjectName: "  "})
	assert.ErrorIs(t, err, ErrInvalidProject)
}

func TestLogEvent(t *testing.T) {
	svc, st := newService(t, &fakeModel{})
	ctx := context.Background()

	require.NoError(t, svc.LogEvent(ctx, Event{ParticipantID: "p1", EventType: "Click", ElementName: "Send Button"}))
	err := svc.LogEvent(ctx, Event{ParticipantID: "p1", EventType: "scroll"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	events, err := st.ListEvents(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "click", events[0].EventType)
	assert.Equal(t, "Send Button", events[0].ElementName)
}

func TestHistory(t *testing.T) {
	svc, st := newService(t, &fakeModel{})
	ctx := context.Background()
	require.NoError(t, st.SaveInteraction(ctx, &store.Interaction{ParticipantID: "p1", UserInput: "q", BotResponse: "a <mdsnippet>*b*</mdsnippet>"}))

	hist, err := svc.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "q", hist[0].UserInput)
	require.Len(t, hist[0].Fragments, 2)
	assert.Equal(t, "<p><em>b</em></p>\n", hist[0].Fragments[1].HTML)
}
