package mcp

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tk103331/eino-chatlab/config"
)

// ValidateConfig checks every configured MCP server and the servers the chat
// refers to
func ValidateConfig(cfg *config.Config) error {
	if cfg == nil {
		return NewMCPError("validate", "", "", ErrInvalidConfig)
	}

	for name, server := range cfg.MCPServers {
		if err := validateServerConfig(name, server); err != nil {
			return err
		}
	}

	for _, name := range cfg.Chat.MCPServers {
		if _, ok := cfg.MCPServers[name]; !ok {
			return NewMCPError("validate", name, "",
				fmt.Errorf("%w: chat references unknown MCP server %s", ErrInvalidConfig, name))
		}
	}
	return nil
}

func invalid(server, format string, args ...any) error {
	return NewMCPError("validate", server, "", fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
}

func validateServerConfig(name string, server config.MCPServer) error {
	if strings.TrimSpace(name) == "" {
		return invalid(name, "server name must not be empty")
	}
	if server.Cmd == "" && server.URL == "" {
		return invalid(name, "server must specify cmd or url")
	}
	if server.Cmd != "" && server.URL != "" {
		return invalid(name, "server cannot specify both cmd and url")
	}

	switch transportOf(server) {
	case transportStdio:
		if server.Cmd == "" {
			return invalid(name, "stdio server must specify cmd")
		}
		return validateCommand(name, server.Cmd)
	case transportSSE, transportHTTP:
		if server.URL == "" {
			return invalid(name, "%s server must specify url", server.Type)
		}
		return validateURL(name, server.URL)
	default:
		return invalid(name, "unsupported server type %q", server.Type)
	}
}

func validateCommand(name, command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return invalid(name, "command must not be empty")
	}

	cmdPath := parts[0]
	if filepath.IsAbs(cmdPath) {
		if _, err := os.Stat(cmdPath); err != nil {
			return invalid(name, "command file does not exist: %s", cmdPath)
		}
		return nil
	}
	if _, err := os.Stat(cmdPath); err == nil {
		return nil
	}
	if _, err := exec.LookPath(cmdPath); err != nil {
		return invalid(name, "command not found: %s", cmdPath)
	}
	return nil
}

func validateURL(name, url string) error {
	for _, prefix := range []string{"http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(url, prefix) {
			return nil
		}
	}
	return invalid(name, "invalid URL %s, must start with http://, https://, ws:// or wss://", url)
}

// ServerConfig returns the configuration of one server
func ServerConfig(cfg *config.Config, name string) (*config.MCPServer, error) {
	if cfg == nil {
		return nil, NewMCPError("get_config", name, "", ErrInvalidConfig)
	}
	server, ok := cfg.MCPServers[name]
	if !ok {
		return nil, NewMCPError("get_config", name, "", ErrServerNotFound)
	}
	return &server, nil
}
