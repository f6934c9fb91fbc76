package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tk103331/eino-chatlab/chat"
	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/snippet"
	"github.com/tk103331/eino-chatlab/store"
)

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (m *fakeModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *fakeModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func newTestServer(t *testing.T, cm *fakeModel) (*Server, *store.Store) {
	t.Helper()
	st := store.OpenMemory(t)
	svc, err := chat.New(context.Background(), chat.Options{Model: cm, Store: st})
	require.NoError(t, err)

	s, err := New(svc, config.Server{MaxBodyBytes: 4096})
	require.NoError(t, err)
	return s, st
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChat(t *testing.T) {
	cm := &fakeModel{reply: "Here you go:\n<mdsnippet># Demo\n\nHello</mdsnippet>\nEnjoy"}
	s, st := newTestServer(t, cm)

	rec := post(t, s, "/chat", map[string]any{"input": "write a readme", "participantID": "p1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	out := decodeBody(t, rec)
	assert.Equal(t, cm.reply, out["message"])
	assert.NotEmpty(t, out["interactionID"])
	require.Len(t, out["fragments"], 3)

	html, _ := out["html"].(string)
	assert.Contains(t, html, `class="md-snippet"`)
	assert.Contains(t, html, `data-raw="`+snippet.EncodeRaw("# Demo\n\nHello")+`"`)
	assert.Contains(t, html, "<h1>Demo</h1>")
	assert.Contains(t, html, `<span class="plain-text">Enjoy</span>`)

	stored, err := st.ListInteractions(context.Background(), "p1", 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "write a readme", stored[0].UserInput)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "empty input", body: `{"input":"   ","participantID":"p1"}`, code: http.StatusBadRequest},
		{name: "invalid json", body: `{"input":`, code: http.StatusBadRequest},
		{name: "completion", body: `{"input":"hi"}`, err: errors.New("upstream down"), code: http.StatusBadGateway},
		{name: "too large", body: `{"input":"` + strings.Repeat("x", 5000) + `"}`, code: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, &fakeModel{reply: "ok", err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestChat_WrongContentType(t *testing.T) {
	s, _ := newTestServer(t, &fakeModel{reply: "ok"})
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("input=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t, &fakeModel{reply: "<mdsnippet>*a*</mdsnippet>"})
	require.Equal(t, http.StatusOK, post(t, s, "/chat", map[string]any{"input": "first", "participantID": "p1"}).Code)
	require.Equal(t, http.StatusOK, post(t, s, "/chat", map[string]any{"input": "second", "participantID": "p1"}).Code)

	rec := post(t, s, "/history", map[string]any{"participantID": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Interactions []struct {
			UserInput   string `json:"userInput"`
			BotResponse string `json:"botResponse"`
			Timestamp   string `json:"timestamp"`
			HTML        string `json:"html"`
		} `json:"interactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Interactions, 2)
	assert.Equal(t, "first", out.Interactions[0].UserInput)
	assert.Equal(t, "second", out.Interactions[1].UserInput)
	assert.Equal(t, "<mdsnippet>*a*</mdsnippet>", out.Interactions[0].BotResponse)
	assert.NotEmpty(t, out.Interactions[0].Timestamp)
	assert.Contains(t, out.Interactions[0].HTML, "<em>a</em>")

	rec = post(t, s, "/history", map[string]any{"participantID": "nobody"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"interactions":[]}`, rec.Body.String())
}

func TestLogEvent(t *testing.T) {
	s, st := newTestServer(t, &fakeModel{})

	rec := post(t, s, "/log-event", map[string]any{
		"eventType":     "click",
		"elementName":   "Send Button",
		"timestamp":     "2024-05-01T12:00:00.000Z",
		"participantID": "p1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	events, err := st.ListEvents(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Send Button", events[0].ElementName)
	assert.Equal(t, 2024, events[0].CreatedAt.Year())

	rec = post(t, s, "/log-event", map[string]any{"eventType": "explode", "participantID": "p1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectInfo(t *testing.T) {
	cm := &fakeModel{reply: "<mdsnippet># chatlab\n\nA research chat.</mdsnippet>"}
	s, _ := newTestServer(t, cm)

	rec := post(t, s, "/project-info", map[string]any{
		"participantID":        "p1",
		"projectName":          "chatlab",
		"authorNames":          []string{"Ada"},
		"programmingLanguages": []string{"Go"},
		"configFile":           map[string]string{"name": "go.mod", "content": "module x"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody(t, rec)
	assert.NotEmpty(t, out["projectID"])
	assert.Contains(t, out["html"], "<h1>chatlab</h1>")

	rec = post(t, s, "/project-info", map[string]any{"projectName": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRender(t *testing.T) {
	s, _ := newTestServer(t, &fakeModel{})

	rec := post(t, s, "/render", map[string]any{"text": "a <mdsnippet>**b**</mdsnippet>"})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody(t, rec)
	assert.Len(t, out["fragments"], 2)
	assert.Contains(t, out["html"], "<strong>b</strong>")

	rec = post(t, s, "/render", map[string]any{"text": "\u200b# T\n<script>x()</script>", "snippet": true})
	require.Equal(t, http.StatusOK, rec.Code)
	out = decodeBody(t, rec)
	html, _ := out["html"].(string)
	assert.True(t, strings.HasPrefix(html, "<h1>T</h1>"), html)
	assert.NotContains(t, html, "<script>")
	assert.Nil(t, out["fragments"])
}

func TestStaticAndHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeModel{})

	for _, path := range []string{"/", "/chat.html", "/script.js", "/style.css"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("custom"), 0o644))

	svc, err := chat.New(context.Background(), chat.Options{Model: &fakeModel{}})
	require.NoError(t, err)
	s, err := New(svc, config.Server{StaticDir: dir})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "custom", rec.Body.String())

	_, err = New(svc, config.Server{StaticDir: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusOf(chat.ErrInvalidEvent))
	assert.Equal(t, http.StatusBadGateway, statusOf(errors.Join(chat.ErrCompletion, errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusOf(chat.ErrStorage))
}
