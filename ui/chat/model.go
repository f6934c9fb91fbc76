package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tk103331/eino-chatlab/chat"
	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/snippet"
)

// MessageType is the kind of a line in the conversation
type MessageType int

const (
	UserMessage MessageType = iota
	AssistantMessage
	ToolMessage
)

// Message is one entry of the conversation view
type Message struct {
	Type      MessageType
	Content   string
	Fragments []segment.Fragment
	// SnippetIDs holds the controller id of each block in Fragments, in order.
	SnippetIDs []string
}

// Backend is the chat service the view talks to
type Backend interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
	History(ctx context.Context, participantID string) ([]chat.Exchange, error)
	LogEvent(ctx context.Context, e chat.Event) error
}

// ReplyMsg carries the answer to a sent message
type ReplyMsg struct {
	Reply *chat.Reply
}

// HistoryMsg carries the stored conversation loaded at start
type HistoryMsg []chat.Exchange

// ErrorMsg reports a failure to the user
type ErrorMsg string

// SnippetChangedMsg asks for a redraw after a snippet changed in the
// background
type SnippetChangedMsg struct{}

// ViewModel is the terminal chat screen
type ViewModel struct {
	ctx           context.Context
	backend       Backend
	participantID string
	segmenter     *segment.Segmenter
	snippets      *snippet.Controller

	messages  []Message
	history   []chat.Turn
	pending   string
	order     []string
	focus     int
	input     textinput.Model
	viewport  int
	width     int
	height    int
	isWaiting bool
	errorMsg  string
}

// NewViewModel creates the chat screen. Replies are segmented with seg and
// the snippet state lives in snippets; both should produce terminal output.
func NewViewModel(ctx context.Context, backend Backend, participantID string, seg *segment.Segmenter, snippets *snippet.Controller) ViewModel {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Prompt = "Enter message: "
	input.Focus()

	return ViewModel{
		input:         input,
		ctx:           ctx,
		backend:       backend,
		participantID: participantID,
		segmenter:     seg,
		snippets:      snippets,
		focus:         -1,
		width:         80,
		height:        24,
	}
}

// Init starts the cursor and loads the stored conversation
func (m ViewModel) Init() tea.Cmd {
	if m.participantID == "" {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, func() tea.Msg {
		exchanges, err := m.backend.History(m.ctx, m.participantID)
		if err != nil {
			return ErrorMsg(fmt.Sprintf("load history: %v", err))
		}
		return HistoryMsg(exchanges)
	})
}

// Update handles input and results
func (m ViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ReplyMsg:
		m.isWaiting = false
		for _, call := range msg.Reply.ToolCalls {
			m.messages = append(m.messages, toolMessage(call))
		}
		m.appendAssistant(msg.Reply.Message)
		m.history = append(m.history,
			chat.Turn{Role: "user", Content: m.pending},
			chat.Turn{Role: "assistant", Content: msg.Reply.Message})
		m.pending = ""
		return m, nil

	case HistoryMsg:
		for _, ex := range msg {
			m.messages = append(m.messages, Message{Type: UserMessage, Content: ex.UserInput})
			m.appendAssistant(ex.BotResponse)
			m.history = append(m.history,
				chat.Turn{Role: "user", Content: ex.UserInput},
				chat.Turn{Role: "assistant", Content: ex.BotResponse})
		}
		return m, nil

	case SnippetChangedMsg:
		return m, nil

	case ErrorMsg:
		m.errorMsg = string(msg)
		m.isWaiting = false
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ViewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.snippets.Remove()
		return m, tea.Quit
	}

	switch key {
	case "tab", "shift+tab":
		if len(m.order) == 0 {
			return m, nil
		}
		if key == "tab" {
			m.focus = (m.focus + 1) % len(m.order)
		} else {
			m.focus = (m.focus - 1 + len(m.order)) % len(m.order)
		}
		return m, m.logEvent("focus", "Snippet")

	case "esc":
		m.focus = -1
		return m, nil

	case "ctrl+t":
		id, ok := m.focused()
		if !ok {
			return m, nil
		}
		if _, err := m.snippets.Toggle(id); err != nil {
			m.errorMsg = err.Error()
			return m, nil
		}
		return m, m.logEvent("toggle", "Snippet")

	case "ctrl+y":
		id, ok := m.focused()
		if !ok {
			return m, nil
		}
		return m, tea.Batch(m.copySnippet(id), m.logEvent("copy", "Snippet"))

	case "up":
		if m.viewport > 0 {
			m.viewport--
		}
		return m, nil

	case "down":
		if m.viewport < len(m.messages)-1 {
			m.viewport++
		}
		return m, nil
	}

	if m.isWaiting {
		return m, nil
	}

	if key == "enter" {
		input := strings.TrimSpace(m.input.Value())
		if input == "" {
			return m, nil
		}
		m.messages = append(m.messages, Message{Type: UserMessage, Content: input})
		m.input.Reset()
		m.pending = input
		m.isWaiting = true
		m.errorMsg = ""
		return m, tea.Batch(m.send(input), m.logEvent("enter", "User Input"))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ViewModel) appendAssistant(content string) {
	out := Message{Type: AssistantMessage, Content: content, Fragments: m.segmenter.Segment(content)}
	for _, f := range out.Fragments {
		if f.Kind != segment.MarkdownBlock {
			continue
		}
		v, err := m.snippets.Register(f)
		if err != nil {
			continue
		}
		out.SnippetIDs = append(out.SnippetIDs, v.ID)
		m.order = append(m.order, v.ID)
	}
	m.messages = append(m.messages, out)
}

func toolMessage(call chat.ToolCall) Message {
	content := fmt.Sprintf("%s(%s)", call.Name, call.Arguments)
	if call.Error != "" {
		return Message{Type: ToolMessage, Content: content + " failed: " + call.Error}
	}
	return Message{Type: ToolMessage, Content: content}
}

func (m ViewModel) focused() (string, bool) {
	if m.focus < 0 || m.focus >= len(m.order) {
		return "", false
	}
	return m.order[m.focus], true
}

func (m ViewModel) send(input string) tea.Cmd {
	req := chat.Request{
		ParticipantID: m.participantID,
		Input:         input,
		History:       append([]chat.Turn(nil), m.history...),
	}
	return func() tea.Msg {
		reply, err := m.backend.Chat(m.ctx, req)
		if err != nil {
			return ErrorMsg(err.Error())
		}
		return ReplyMsg{Reply: reply}
	}
}

func (m ViewModel) copySnippet(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.snippets.Copy(m.ctx, id); err != nil {
			return ErrorMsg(err.Error())
		}
		return SnippetChangedMsg{}
	}
}

func (m ViewModel) logEvent(eventType, element string) tea.Cmd {
	if m.participantID == "" {
		return nil
	}
	e := chat.Event{ParticipantID: m.participantID, EventType: eventType, ElementName: element}
	return func() tea.Msg {
		// event logging never interrupts the conversation
		_ = m.backend.LogEvent(m.ctx, e)
		return nil
	}
}

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0099ff")).Bold(true)
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true)
	snippetStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#666666"))
	focusStyle     = snippetStyle.BorderForeground(lipgloss.Color("#0099ff"))
	toolbarStyle   = lipgloss.NewStyle().Faint(true)
	inputStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 1)
)

func (m ViewModel) renderSnippet(id string, n int) string {
	v, err := m.snippets.View(id)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	toolbar := toolbarStyle.Render(fmt.Sprintf("[%d] %s (ctrl+t)  %s (ctrl+y)", n, v.ToggleLabel, v.CopyLabel))
	style := snippetStyle
	if cur, ok := m.focused(); ok && cur == id {
		style = focusStyle
	}
	return style.Render(toolbar + "\n" + strings.TrimRight(v.Content, "\n"))
}

func (m ViewModel) renderAssistant(msg Message, first int) string {
	var parts []string
	block := 0
	for _, f := range msg.Fragments {
		if f.Kind != segment.MarkdownBlock {
			parts = append(parts, strings.TrimSpace(f.Text))
			continue
		}
		if block < len(msg.SnippetIDs) {
			parts = append(parts, m.renderSnippet(msg.SnippetIDs[block], first+block+1))
		}
		block++
	}
	return strings.Join(parts, "\n")
}

// View renders the screen
func (m ViewModel) View() string {
	lines := []string{"=== chatlab ===", ""}

	snippetsBefore := 0
	for i, msg := range m.messages {
		if i < m.viewport {
			snippetsBefore += len(msg.SnippetIDs)
			continue
		}
		switch msg.Type {
		case UserMessage:
			lines = append(lines, userStyle.Render("You: ")+msg.Content)
		case AssistantMessage:
			lines = append(lines, assistantStyle.Render("AI: ")+m.renderAssistant(msg, snippetsBefore))
		case ToolMessage:
			lines = append(lines, toolStyle.Render("tool: ")+msg.Content)
		}
		snippetsBefore += len(msg.SnippetIDs)
		lines = append(lines, "")
	}

	if m.isWaiting {
		lines = append(lines, "AI is thinking...", "")
	}
	if m.errorMsg != "" {
		lines = append(lines, errorStyle.Render("Error: ")+m.errorMsg, "")
	}

	body := strings.Split(strings.Join(lines, "\n"), "\n")
	if maxLines := m.height - 6; maxLines > 0 && len(body) > maxLines {
		body = body[len(body)-maxLines:]
	}

	input := m.input.View()
	if m.isWaiting {
		input = "Waiting for response... "
	}
	help := "Ctrl+C quit · ↑/↓ scroll · Enter send · Tab select snippet · Ctrl+T raw/rendered · Ctrl+Y copy"

	return fmt.Sprintf("%s\n\n%s\n\n%s", strings.Join(body, "\n"), inputStyle.Render(input), help)
}
