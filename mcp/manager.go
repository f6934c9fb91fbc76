// Package mcp connects to the MCP servers named in the configuration and
// exposes their tools as eino tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	einomcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	mcpProtocol "github.com/mark3labs/mcp-go/mcp"

	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/logger"
)

const (
	clientName    = "eino-chatlab"
	clientVersion = "1.0.0"
)

// Manager owns the connections to MCP servers and the tools they offer.
// Tool names are prefixed with the server name: server_tool.
type Manager struct {
	mu      sync.RWMutex
	cfg     *config.Config
	clients map[string]*client.Client
	tools   map[string]tool.InvokableTool
}

// NewManager creates a manager for the servers in cfg. Nothing connects
// until Connect.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:     cfg,
		clients: make(map[string]*client.Client),
		tools:   make(map[string]tool.InvokableTool),
	}
}

// Connect starts clients for the named servers and discovers their tools.
// Servers already connected are skipped.
func (m *Manager) Connect(ctx context.Context, names ...string) error {
	if err := ValidateConfig(m.cfg); err != nil {
		return err
	}

	for _, name := range names {
		m.mu.RLock()
		_, done := m.clients[name]
		m.mu.RUnlock()
		if done {
			continue
		}

		server, err := ServerConfig(m.cfg, name)
		if err != nil {
			return err
		}
		cli, err := newClient(ctx, *server)
		if err != nil {
			return NewMCPError("connect", name, "", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
		if err := m.Attach(ctx, name, cli); err != nil {
			cli.Close()
			return err
		}
		logger.Info("MCP", fmt.Sprintf("connected to %s", name))
	}
	return nil
}

// Attach initializes an already started client and registers its tools
// under name
func (m *Manager) Attach(ctx context.Context, name string, cli *client.Client) error {
	req := mcpProtocol.InitializeRequest{}
	req.Params.ProtocolVersion = mcpProtocol.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpProtocol.Implementation{Name: clientName, Version: clientVersion}
	if _, err := cli.Initialize(ctx, req); err != nil {
		return NewMCPError("initialize", name, "", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
	}

	found, err := einomcp.GetTools(ctx, &einomcp.Config{Cli: cli})
	if err != nil {
		return NewMCPError("list_tools", name, "", err)
	}

	tools := make(map[string]tool.InvokableTool, len(found))
	for _, t := range found {
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			continue
		}
		info, err := t.Info(ctx)
		if err != nil {
			return NewMCPError("list_tools", name, "", err)
		}
		tools[name+"_"+info.Name] = inv
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[name] = cli
	for k, t := range tools {
		m.tools[k] = t
	}
	return nil
}

// Tools returns the tools of the named servers sorted by name
func (m *Manager) Tools(names ...string) ([]tool.InvokableTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for _, server := range names {
		if _, ok := m.clients[server]; !ok {
			return nil, NewMCPError("get_tools", server, "", ErrMCPNotInitialized)
		}
		prefix := server + "_"
		for k := range m.tools {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	out := make([]tool.InvokableTool, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.tools[k])
	}
	return out, nil
}

// Tool returns one tool by its prefixed name
func (m *Manager) Tool(name string) (tool.InvokableTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tools[name]
	if !ok {
		return nil, NewMCPError("get_tool", "", name, ErrToolNotFound)
	}
	return t, nil
}

// ToolNames lists every discovered tool name
func (m *Manager) ToolNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tools))
	for k := range m.tools {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Close closes every client
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, cli := range m.clients {
		if err := cli.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close MCP client %s: %w", name, err))
		}
	}
	m.clients = make(map[string]*client.Client)
	m.tools = make(map[string]tool.InvokableTool)
	return errors.Join(errs...)
}
