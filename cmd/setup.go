package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"

	"github.com/tk103331/eino-chatlab/chat"
	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/mcp"
	"github.com/tk103331/eino-chatlab/model"
	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/store"
	"github.com/tk103331/eino-chatlab/tools"
)

// services is everything a command needs to answer chat requests
type services struct {
	chat  *chat.Service
	store *store.Store
	mcp   *mcp.Manager
	flush func()
}

// setupCallbacks registers langfuse as a global callback when configured
func setupCallbacks(cfg *config.Config) func() {
	if cfg.Settings.Langfuse == nil {
		return func() {}
	}
	handler, flusher := langfuse.NewLangfuseHandler(cfg.Settings.Langfuse)
	callbacks.AppendGlobalHandlers(handler)
	return flusher
}

func newSegmenter(cfg *config.Config) *segment.Segmenter {
	return segment.New(segment.WithDelimiters(cfg.Chat.Delimiters.Open, cfg.Chat.Delimiters.Close))
}

// newServices opens the store, connects MCP servers and builds the chat
// service. modelName overrides chat.model when set.
func newServices(ctx context.Context, cfg *config.Config, modelName string) (_ *services, err error) {
	if modelName == "" {
		modelName = cfg.Chat.Model
	}
	if modelName == "" {
		return nil, fmt.Errorf("no chat model configured: set chat.model or pass --model")
	}

	s := &services{flush: setupCallbacks(cfg)}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	factory := model.NewFactory(cfg)
	cm, err := factory.CreateChatModel(ctx, modelName)
	if err != nil {
		return nil, err
	}
	var readme = cm
	if cfg.Chat.ReadmeModel != "" && cfg.Chat.ReadmeModel != modelName {
		if readme, err = factory.CreateChatModel(ctx, cfg.Chat.ReadmeModel); err != nil {
			return nil, err
		}
	}

	chatTools, err := tools.CreateTools(ctx, cfg, cfg.Chat.Tools)
	if err != nil {
		return nil, err
	}
	if len(cfg.Chat.MCPServers) > 0 {
		s.mcp = mcp.NewManager(cfg)
		if err = s.mcp.Connect(ctx, cfg.Chat.MCPServers...); err != nil {
			return nil, err
		}
		var mcpTools []tool.InvokableTool
		if mcpTools, err = s.mcp.Tools(cfg.Chat.MCPServers...); err != nil {
			return nil, err
		}
		chatTools = append(chatTools, mcpTools...)
	}

	if s.store, err = store.Open(cfg.Database.Path); err != nil {
		return nil, err
	}

	s.chat, err = chat.New(ctx, chat.Options{
		Model:         cm,
		ReadmeModel:   readme,
		Tools:         chatTools,
		Store:         s.store,
		Segmenter:     newSegmenter(cfg),
		System:        cfg.Chat.System,
		MaxIterations: cfg.Chat.MaxIterations,
		HistoryLimit:  cfg.Chat.HistoryLimit,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("SETUP", fmt.Sprintf("chat model %s with %d tools", modelName, len(chatTools)))
	return s, nil
}

// Close releases the store and MCP clients and flushes traces
func (s *services) Close() error {
	var errs []error
	if s.mcp != nil {
		errs = append(errs, s.mcp.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.flush != nil {
		s.flush()
	}
	return errors.Join(errs...)
}
