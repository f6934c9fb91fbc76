package tools

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/bingsearch"
	"github.com/cloudwego/eino-ext/components/tool/duckduckgo"
	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/ddgsearch"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino-ext/components/tool/sequentialthinking"
	"github.com/cloudwego/eino-ext/components/tool/wikipedia"
	"github.com/cloudwego/eino/components/tool"

	"github.com/tk103331/eino-chatlab/config"
)

// NewBingSearchTool creates a Bing search tool. Requires api_key.
func NewBingSearchTool(ctx context.Context, name string, cfg config.Tool) (tool.InvokableTool, error) {
	return bingsearch.NewTool(ctx, &bingsearch.Config{
		ToolName:   name,
		ToolDesc:   cfg.Description,
		APIKey:     stringOr(cfg, "api_key", ""),
		MaxResults: intOr(cfg, "max_results", 5),
	})
}

var ddgRegions = map[string]ddgsearch.Region{
	"cn": ddgsearch.RegionCN,
	"us": ddgsearch.RegionUS,
	"uk": ddgsearch.RegionUK,
}

var ddgSafeSearch = map[string]ddgsearch.SafeSearch{
	"strict":   ddgsearch.SafeSearchStrict,
	"moderate": ddgsearch.SafeSearchModerate,
}

// NewDuckDuckGoTool creates a DuckDuckGo search tool
func NewDuckDuckGoTool(ctx context.Context, name string, cfg config.Tool) (tool.InvokableTool, error) {
	region, ok := ddgRegions[stringOr(cfg, "region", "")]
	if !ok {
		region = ddgsearch.RegionWT
	}
	safe, ok := ddgSafeSearch[stringOr(cfg, "safe_search", "")]
	if !ok {
		safe = ddgsearch.SafeSearchOff
	}

	return duckduckgo.NewTool(ctx, &duckduckgo.Config{
		ToolName:   name,
		ToolDesc:   cfg.Description,
		Region:     region,
		MaxResults: intOr(cfg, "max_results", 10),
		SafeSearch: safe,
		TimeRange:  ddgsearch.TimeRangeAll,
		DDGConfig: &ddgsearch.Config{
			Timeout:    time.Duration(intOr(cfg, "timeout", 10)) * time.Second,
			Cache:      true,
			MaxRetries: 5,
		},
	})
}

// NewGoogleSearchTool creates a Google custom search tool. Requires api_key
// and search_engine_id.
func NewGoogleSearchTool(ctx context.Context, name string, cfg config.Tool) (tool.InvokableTool, error) {
	return googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       name,
		ToolDesc:       cfg.Description,
		APIKey:         stringOr(cfg, "api_key", ""),
		SearchEngineID: stringOr(cfg, "search_engine_id", ""),
		BaseURL:        stringOr(cfg, "base_url", ""),
		Num:            intOr(cfg, "num", 5),
		Lang:           stringOr(cfg, "lang", "en"),
	})
}

// NewWikipediaTool creates a Wikipedia search tool
func NewWikipediaTool(ctx context.Context, _ string, cfg config.Tool) (tool.InvokableTool, error) {
	return wikipedia.NewTool(ctx, &wikipedia.Config{
		Language:    stringOr(cfg, "language", "en"),
		TopK:        intOr(cfg, "top_k", 5),
		DocMaxChars: intOr(cfg, "doc_max_chars", 500),
		Timeout:     time.Duration(intOr(cfg, "timeout", 15)) * time.Second,
		BaseURL:     stringOr(cfg, "base_url", ""),
		UserAgent:   stringOr(cfg, "user_agent", ""),
		MaxRedirect: intOr(cfg, "max_redirect", 3),
	})
}

// NewSequentialThinkingTool creates the sequential thinking tool. It takes no
// configuration.
func NewSequentialThinkingTool(context.Context, string, config.Tool) (tool.InvokableTool, error) {
	return sequentialthinking.NewTool()
}
