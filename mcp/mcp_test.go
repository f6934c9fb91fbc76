package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcpProtocol "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tk103331/eino-chatlab/config"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		servers map[string]config.MCPServer
		chat    []string
		wantErr string
	}{
		{name: "empty"},
		{name: "http ok", servers: map[string]config.MCPServer{"docs": {Type: "http", URL: "https://example.com/mcp"}}, chat: []string{"docs"}},
		{name: "no target", servers: map[string]config.MCPServer{"x": {Type: "sse"}}, wantErr: "must specify cmd or url"},
		{name: "both", servers: map[string]config.MCPServer{"x": {Cmd: "ls", URL: "http://a"}}, wantErr: "cannot specify both"},
		{name: "bad url", servers: map[string]config.MCPServer{"x": {Type: "sse", URL: "ftp://a"}}, wantErr: "invalid URL"},
		{name: "bad type", servers: map[string]config.MCPServer{"x": {Type: "carrier-pigeon", URL: "http://a"}}, wantErr: "unsupported server type"},
		{name: "missing command", servers: map[string]config.MCPServer{"x": {Type: "stdio", Cmd: "/definitely/not/here"}}, wantErr: "command file does not exist"},
		{name: "unknown chat ref", chat: []string{"ghost"}, wantErr: "unknown MCP server ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{MCPServers: tt.servers, Chat: config.Chat{MCPServers: tt.chat}}
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, IsConfigError(err))

			var mcpErr *MCPError
			require.True(t, errors.As(err, &mcpErr))
			assert.Equal(t, "validate", mcpErr.Op)
		})
	}
}

func TestMCPError(t *testing.T) {
	err := NewMCPError("call", "docs", "search", ErrConnectionFailed)
	assert.Equal(t, "MCP error [call] server:docs tool:search - MCP connection failed", err.Error())
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsConfigError(err))
	assert.Equal(t, "MCP error [x] - boom", NewMCPError("x", "", "", errors.New("boom")).Error())
}

func TestManager_NotConnected(t *testing.T) {
	m := NewManager(&config.Config{})
	_, err := m.Tools("docs")
	assert.ErrorIs(t, err, ErrMCPNotInitialized)

	_, err = m.Tool("docs_search")
	assert.ErrorIs(t, err, ErrToolNotFound)

	err = m.Connect(context.Background(), "docs")
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestManager_AttachInProcess(t *testing.T) {
	srv := server.NewMCPServer("echo-server", "0.1.0")
	srv.AddTool(
		mcpProtocol.NewTool("echo",
			mcpProtocol.WithDescription("echo the text back"),
			mcpProtocol.WithString("text", mcpProtocol.Required()),
		),
		func(ctx context.Context, req mcpProtocol.CallToolRequest) (*mcpProtocol.CallToolResult, error) {
			return mcpProtocol.NewToolResultText("echo: " + req.GetString("text", "")), nil
		},
	)

	ctx := context.Background()
	cli, err := client.NewInProcessClient(srv)
	require.NoError(t, err)
	require.NoError(t, cli.Start(ctx))

	m := NewManager(&config.Config{})
	require.NoError(t, m.Attach(ctx, "local", cli))
	t.Cleanup(func() { m.Close() })

	assert.Equal(t, []string{"local_echo"}, m.ToolNames())

	tools, err := m.Tools("local")
	require.NoError(t, err)
	require.Len(t, tools, 1)

	info, err := tools[0].Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo", info.Name)

	out, err := tools[0].InvokableRun(ctx, `{"text":"hello"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "echo: hello")
}
