package model

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qianfan"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/tk103331/eino-chatlab/config"
)

// sampling holds the optional generation parameters; nil means provider
// default.
type sampling struct {
	maxTokens   *int
	temperature *float32
	topP        *float32
}

func samplingOf(m *config.Model) sampling {
	var s sampling
	if m.MaxTokens > 0 {
		n := m.MaxTokens
		s.maxTokens = &n
	}
	if m.Temperature > 0 {
		t := float32(m.Temperature)
		s.temperature = &t
	}
	if m.TopP > 0 {
		p := float32(m.TopP)
		s.topP = &p
	}
	return s
}

func createOpenAIModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	s := samplingOf(m)
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       m.Model,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	})
}

func createClaudeModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	s := samplingOf(m)
	cfg := &claude.Config{
		Model:       m.Model,
		APIKey:      p.APIKey,
		MaxTokens:   4096,
		Temperature: s.temperature,
		TopP:        s.topP,
	}
	if p.BaseURL != "" {
		baseURL := p.BaseURL
		cfg.BaseURL = &baseURL
	}
	if s.maxTokens != nil {
		cfg.MaxTokens = *s.maxTokens
	}
	return claude.NewChatModel(ctx, cfg)
}

func createGeminiModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	cc := &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	s := samplingOf(m)
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       m.Model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	})
}

func createQwenModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	s := samplingOf(m)
	return qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		Model:       m.Model,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	})
}

// Qianfan reads its credentials from QIANFAN_ACCESS_KEY and
// QIANFAN_SECRET_KEY; the provider entry only selects the type.
func createQianfanModel(ctx context.Context, m *config.Model, _ *config.Provider) (model.ToolCallingChatModel, error) {
	s := samplingOf(m)
	return qianfan.NewChatModel(ctx, &qianfan.ChatModelConfig{
		Model:       m.Model,
		Temperature: s.temperature,
		TopP:        s.topP,
	})
}

func createArkModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	s := samplingOf(m)
	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		Model:       m.Model,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	})
}

func createDeepSeekModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	cfg := &deepseek.ChatModelConfig{
		Model:       m.Model,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		MaxTokens:   m.MaxTokens,
		Temperature: float32(m.Temperature),
		TopP:        float32(m.TopP),
	}
	return deepseek.NewChatModel(ctx, cfg)
}

// Ollama sampling parameters live in the model file on the server side.
func createOllamaModel(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error) {
	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		Model:   m.Model,
		BaseURL: p.BaseURL,
	})
}
