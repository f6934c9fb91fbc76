package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"github.com/tk103331/eino-chatlab/config"
)

const (
	transportStdio = "stdio"
	transportSSE   = "sse"
	transportHTTP  = "streamable-http"
)

func transportOf(server config.MCPServer) string {
	switch strings.ToLower(server.Type) {
	case "stdio":
		return transportStdio
	case "sse":
		return transportSSE
	case "streamable-http", "http":
		return transportHTTP
	case "":
		if server.Cmd != "" {
			return transportStdio
		}
		if server.URL != "" {
			return transportHTTP
		}
	}
	return ""
}

// newClient creates and starts the client for one server
func newClient(ctx context.Context, server config.MCPServer) (*client.Client, error) {
	switch transportOf(server) {
	case transportStdio:
		return newStdioClient(server)
	case transportSSE:
		cli, err := newSSEClient(server)
		if err != nil {
			return nil, err
		}
		return start(ctx, cli)
	case transportHTTP:
		cli, err := newStreamableHTTPClient(server)
		if err != nil {
			return nil, err
		}
		return start(ctx, cli)
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %s", server.Type)
	}
}

func start(ctx context.Context, cli *client.Client) (*client.Client, error) {
	if err := cli.Start(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to start MCP transport: %w", err)
	}
	return cli, nil
}

// stdio clients start their subprocess on creation
func newStdioClient(server config.MCPServer) (*client.Client, error) {
	env := make([]string, 0, len(server.Env))
	for k, v := range server.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cli, err := client.NewStdioMCPClient(server.Cmd, env, server.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}
	return cli, nil
}

func newStreamableHTTPClient(server config.MCPServer) (*client.Client, error) {
	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPTimeout(30 * time.Second),
	}
	if len(server.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(server.Headers))
	}
	cli, err := client.NewStreamableHttpClient(server.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable HTTP MCP client: %w", err)
	}
	return cli, nil
}

func newSSEClient(server config.MCPServer) (*client.Client, error) {
	if _, err := url.Parse(server.URL); err != nil {
		return nil, fmt.Errorf("invalid SSE server URL: %w", err)
	}
	var opts []transport.ClientOption
	if len(server.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(server.Headers))
	}
	cli, err := client.NewSSEMCPClient(server.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE MCP client: %w", err)
	}
	return cli, nil
}
