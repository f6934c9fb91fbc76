// Package chat runs conversations against the configured chat model: it
// builds the prompt, lets the model call tools, segments the reply and
// records the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/store"
)

var (
	ErrEmptyInput     = errors.New("input must not be empty")
	ErrInvalidProject = errors.New("project name must not be empty")
	ErrInvalidEvent   = errors.New("invalid event")
	ErrCompletion     = errors.New("completion failed")
	ErrStorage        = errors.New("storage failed")
)

// DefaultSystem asks the model to wrap markdown documents in the default
// snippet markers
const DefaultSystem = "You are a helpful assistant for software projects. " +
	"Whenever you write a markdown document the user may want to copy, such as a README, " +
	"put the whole document between " + config.DefaultOpenMarker + " and " + config.DefaultCloseMarker +
	" on their own lines. Keep explanations outside the markers."

// Store is the persistence the service needs
type Store interface {
	SaveInteraction(ctx context.Context, in *store.Interaction) error
	ListInteractions(ctx context.Context, participantID string, limit int) ([]store.Interaction, error)
	SaveProjectInfo(ctx context.Context, p *store.ProjectInfo) error
	SaveEvent(ctx context.Context, e *store.EventLog) error
}

// Options configure a Service
type Options struct {
	Model model.ToolCallingChatModel
	// ReadmeModel answers README requests. Defaults to Model.
	ReadmeModel   model.ToolCallingChatModel
	Tools         []tool.InvokableTool
	Store         Store
	Segmenter     *segment.Segmenter
	System        string
	MaxIterations int
	HistoryLimit  int
}

// Turn is one message of a conversation history
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one user message
type Request struct {
	ParticipantID string `json:"participantID"`
	Input         string `json:"input"`
	History       []Turn `json:"history,omitempty"`
}

// ToolCall records a tool the model used while answering
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Reply is the model answer to a request
type Reply struct {
	Message       string             `json:"message"`
	Fragments     []segment.Fragment `json:"fragments"`
	ToolCalls     []ToolCall         `json:"toolCalls,omitempty"`
	InteractionID string             `json:"interactionID,omitempty"`
	ProjectID     string             `json:"projectID,omitempty"`
}

type runner func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)

// Service answers chat requests
type Service struct {
	chat      runner
	readme    runner
	store     Store
	segmenter *segment.Segmenter
	template  prompt.ChatTemplate
	history   int
}

// New compiles the conversation graph. With tools it is a ReAct agent that
// loops between the model and the tools; without tools it is a single model
// call.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("chat: model is required")
	}
	if opts.Segmenter == nil {
		opts.Segmenter = segment.New()
	}
	if opts.System == "" {
		opts.System = DefaultSystem
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = config.DefaultMaxIterations
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = config.DefaultHistoryLimit
	}

	chatRunner, err := newRunner(ctx, opts.Model, opts.Tools, opts.MaxIterations)
	if err != nil {
		return nil, err
	}
	readmeRunner := chatRunner
	if opts.ReadmeModel != nil {
		if readmeRunner, err = newRunner(ctx, opts.ReadmeModel, nil, 1); err != nil {
			return nil, err
		}
	}

	return &Service{
		chat:      chatRunner,
		readme:    readmeRunner,
		store:     opts.Store,
		segmenter: opts.Segmenter,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(opts.System),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{input}"),
		),
		history: opts.HistoryLimit,
	}, nil
}

func newRunner(ctx context.Context, cm model.ToolCallingChatModel, tools []tool.InvokableTool, maxIterations int) (runner, error) {
	if len(tools) == 0 {
		chain, err := compose.NewChain[[]*schema.Message, *schema.Message]().
			AppendChatModel(cm).
			Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("chat: compile chain: %w", err)
		}
		return func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
			return chain.Invoke(ctx, msgs)
		}, nil
	}

	base := make([]tool.BaseTool, 0, len(tools))
	for _, t := range tools {
		base = append(base, recordedTool{t})
	}
	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cm,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: base},
		// one step for the model and one for the tools per round
		MaxStep: 2*maxIterations + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: create agent: %w", err)
	}
	return func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
		return agent.Generate(ctx, msgs)
	}, nil
}

// Segmenter returns the segmenter replies are split with
func (s *Service) Segmenter() *segment.Segmenter {
	return s.segmenter
}

// Chat answers one message. Without a client supplied history the stored
// history of the participant is used.
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	history, err := s.historyMessages(ctx, req)
	if err != nil {
		return nil, err
	}

	msgs, err := s.template.Format(ctx, map[string]any{
		"history": history,
		"input":   input,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}

	reply, err := s.complete(ctx, s.chat, msgs)
	if err != nil {
		return nil, err
	}

	id, err := s.record(ctx, req.ParticipantID, input, reply.Message)
	if err != nil {
		return nil, err
	}
	reply.InteractionID = id
	return reply, nil
}

func (s *Service) historyMessages(ctx context.Context, req Request) ([]*schema.Message, error) {
	turns := req.History
	if len(turns) == 0 && s.store != nil && req.ParticipantID != "" {
		stored, err := s.store.ListInteractions(ctx, req.ParticipantID, s.history)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		for _, in := range stored {
			turns = append(turns, Turn{Role: "user", Content: in.UserInput}, Turn{Role: "assistant", Content: in.BotResponse})
		}
	}
	if limit := 2 * s.history; len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch strings.ToLower(t.Role) {
		case "user":
			msgs = append(msgs, schema.UserMessage(t.Content))
		case "assistant", "ai", "bot":
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		}
	}
	return msgs, nil
}

func (s *Service) complete(ctx context.Context, run runner, msgs []*schema.Message) (*Reply, error) {
	rec := &recorder{}
	out, err := run(withRecorder(ctx, rec), msgs)
	if err != nil {
		logger.Error("CHAT", fmt.Sprintf("completion failed: %v", err))
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty response", ErrCompletion)
	}

	return &Reply{
		Message:   out.Content,
		Fragments: s.segmenter.Segment(out.Content),
		ToolCalls: rec.list(),
	}, nil
}

func (s *Service) record(ctx context.Context, participantID, input, response string) (string, error) {
	if s.store == nil {
		return "", nil
	}
	in := &store.Interaction{
		ParticipantID: participantID,
		UserInput:     input,
		BotResponse:   response,
	}
	if err := s.store.SaveInteraction(ctx, in); err != nil {
		logger.Error("CHAT", fmt.Sprintf("save interaction for %s: %v", participantID, err))
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return in.ID, nil
}

// Exchange is a stored interaction with its reply segmented again
type Exchange struct {
	store.Interaction
	Fragments []segment.Fragment `json:"fragments"`
}

// History returns the stored exchanges of a participant oldest first
func (s *Service) History(ctx context.Context, participantID string) ([]Exchange, error) {
	if s.store == nil {
		return nil, nil
	}
	stored, err := s.store.ListInteractions(ctx, participantID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	out := make([]Exchange, 0, len(stored))
	for _, in := range stored {
		out = append(out, Exchange{Interaction: in, Fragments: s.segmenter.Segment(in.BotResponse)})
	}
	return out, nil
}
