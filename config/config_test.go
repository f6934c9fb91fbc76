package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  addr: ":8080"
database:
  path: /tmp/chatlab.db
chat:
  model: gpt
  system: "You are a helpful research assistant."
  tools: [search]
providers:
  openai:
    type: openai
    api_key: ${CHATLAB_TEST_KEY}
models:
  gpt:
    provider: openai
    model: gpt-4o-mini
    temperature: 0.2
tools:
  search:
    type: duckduckgo
    config:
      max_results: 3
      region: us
      headers:
        X-Trace: "on"
`

func TestParse(t *testing.T) {
	t.Setenv("CHATLAB_TEST_KEY", "sk-test")
	t.Setenv("PORT", "")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/tmp/chatlab.db", cfg.Database.Path)
	assert.Equal(t, "sk-test", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "gpt", cfg.Chat.ReadmeModel)
	assert.Equal(t, DefaultMaxIterations, cfg.Chat.MaxIterations)
	assert.Equal(t, DefaultOpenMarker, cfg.Chat.Delimiters.Open)
	assert.Equal(t, DefaultCloseMarker, cfg.Chat.Delimiters.Close)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	search := cfg.Tools["search"]
	assert.Equal(t, 3, search.Config["max_results"].Int())
	assert.Equal(t, "us", search.Config["region"].String())
	require.True(t, search.Config["headers"].IsMap())
	assert.Equal(t, "on", search.Config["headers"].Map()["X-Trace"].String())
}

func TestParse_PortOverride(t *testing.T) {
	t.Setenv("PORT", "4000")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Server.Addr)
}

func TestParse_Validation(t *testing.T) {
	t.Setenv("PORT", "")

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown model",
			yaml: "chat:\n  model: nope\n",
			want: "model configuration does not exist: nope",
		},
		{
			name: "unknown provider",
			yaml: "chat:\n  model: m\nmodels:\n  m:\n    provider: p\n    model: x\n",
			want: "provider configuration does not exist: p",
		},
		{
			name: "unknown tool",
			yaml: "chat:\n  tools: [search]\n",
			want: "chat references unknown tool: search",
		},
		{
			name: "unknown mcp server",
			yaml: "chat:\n  mcp_servers: [fs]\n",
			want: "chat references unknown MCP server: fs",
		},
		{
			name: "same delimiters",
			yaml: "chat:\n  delimiters:\n    open: \"@@\"\n    close: \"@@\"\n",
			want: "chat delimiters must differ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CHATLAB_TEST_KEY", "k")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Same(t, cfg, GetConfig())
}

func TestValue(t *testing.T) {
	assert.Equal(t, "", Value{}.String())
	assert.Equal(t, 0, NewValue("abc").Int())
	assert.Equal(t, 12, NewValue("12").Int())
	assert.Equal(t, 7, NewValue(7.9).Int())
	assert.True(t, NewValue("true").Bool())
	assert.False(t, NewValue(1).IsMap())
	assert.Nil(t, NewValue("x").Map())
}
