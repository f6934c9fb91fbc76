// Package model builds eino chat models from the providers and models
// declared in the configuration.
package model

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/tk103331/eino-chatlab/config"
)

// Builder creates a chat model for one provider type
type Builder func(ctx context.Context, m *config.Model, p *config.Provider) (model.ToolCallingChatModel, error)

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{
		"openai":   createOpenAIModel,
		"claude":   createClaudeModel,
		"gemini":   createGeminiModel,
		"qwen":     createQwenModel,
		"qianfan":  createQianfanModel,
		"ark":      createArkModel,
		"deepseek": createDeepSeekModel,
		"ollama":   createOllamaModel,
	}
)

// Register adds or replaces the builder for a provider type
func Register(providerType string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[providerType] = b
}

// ProviderTypes lists the provider types that can be built
func ProviderTypes() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()

	types := make([]string, 0, len(builders))
	for t := range builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Factory creates chat models by configured model name
type Factory struct {
	cfg *config.Config

	mu    sync.Mutex
	cache map[string]model.ToolCallingChatModel
}

// NewFactory creates a new Factory
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg, cache: make(map[string]model.ToolCallingChatModel)}
}

// CreateChatModel creates the chat model configured under modelName. Models
// are built once and shared; tool binding goes through WithTools, which
// returns a new instance.
func (f *Factory) CreateChatModel(ctx context.Context, modelName string) (model.ToolCallingChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cm, ok := f.cache[modelName]; ok {
		return cm, nil
	}

	modelCfg, ok := f.cfg.Models[modelName]
	if !ok {
		return nil, fmt.Errorf("model configuration does not exist: %s", modelName)
	}
	providerCfg, ok := f.cfg.Providers[modelCfg.Provider]
	if !ok {
		return nil, fmt.Errorf("provider configuration does not exist: %s", modelCfg.Provider)
	}

	buildersMu.RLock()
	build, ok := builders[providerCfg.Type]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider type: %s", providerCfg.Type)
	}

	cm, err := build(ctx, &modelCfg, &providerCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s model %s: %w", providerCfg.Type, modelName, err)
	}
	f.cache[modelName] = cm
	return cm, nil
}
