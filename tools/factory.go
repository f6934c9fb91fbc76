// Package tools builds the eino tools a chat model may call from the tools
// section of the configuration.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"

	"github.com/tk103331/eino-chatlab/config"
)

type constructor func(ctx context.Context, name string, cfg config.Tool) (tool.InvokableTool, error)

var constructors = map[string]constructor{
	"customhttp":         NewHTTPTool,
	"bingsearch":         NewBingSearchTool,
	"duckduckgo":         NewDuckDuckGoTool,
	"googlesearch":       NewGoogleSearchTool,
	"httprequest":        NewHTTPRequestTool,
	"sequentialthinking": NewSequentialThinkingTool,
	"wikipedia":          NewWikipediaTool,
}

// Types lists the supported tool types
func Types() []string {
	types := make([]string, 0, len(constructors))
	for t := range constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CreateTool creates a tool instance from its configuration
func CreateTool(ctx context.Context, name string, cfg config.Tool) (tool.InvokableTool, error) {
	create, ok := constructors[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("unsupported tool type: %s", cfg.Type)
	}
	return create(ctx, name, cfg)
}

// CreateTools creates the named tools. Names are looked up in cfg.Tools.
func CreateTools(ctx context.Context, cfg *config.Config, names []string) ([]tool.InvokableTool, error) {
	out := make([]tool.InvokableTool, 0, len(names))
	for _, name := range names {
		toolCfg, ok := cfg.Tools[name]
		if !ok {
			return nil, fmt.Errorf("tool configuration does not exist: %s", name)
		}
		t, err := CreateTool(ctx, name, toolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create tool %s: %w", name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func intOr(cfg config.Tool, key string, def int) int {
	if v, ok := cfg.Config[key]; ok {
		if n := v.Int(); n > 0 {
			return n
		}
	}
	return def
}

func stringOr(cfg config.Tool, key, def string) string {
	if v, ok := cfg.Config[key]; ok {
		if s := v.String(); s != "" {
			return s
		}
	}
	return def
}
