package mcp

import (
	"errors"
	"fmt"
)

var (
	ErrMCPNotInitialized = errors.New("MCP manager not initialized")
	ErrServerNotFound    = errors.New("MCP server not found")
	ErrToolNotFound      = errors.New("MCP tool not found")
	ErrInvalidConfig     = errors.New("invalid MCP configuration")
	ErrConnectionFailed  = errors.New("MCP connection failed")
)

// MCPError records the operation and server an MCP failure belongs to
type MCPError struct {
	Op     string
	Server string
	Tool   string
	Err    error
}

func (e *MCPError) Error() string {
	switch {
	case e.Server != "" && e.Tool != "":
		return fmt.Sprintf("MCP error [%s] server:%s tool:%s - %v", e.Op, e.Server, e.Tool, e.Err)
	case e.Server != "":
		return fmt.Sprintf("MCP error [%s] server:%s - %v", e.Op, e.Server, e.Err)
	default:
		return fmt.Sprintf("MCP error [%s] - %v", e.Op, e.Err)
	}
}

// Unwrap returns original error
func (e *MCPError) Unwrap() error {
	return e.Err
}

// NewMCPError creates new MCP error
func NewMCPError(op, server, tool string, err error) *MCPError {
	return &MCPError{Op: op, Server: server, Tool: tool, Err: err}
}

// IsConnectionError reports whether err is a connection failure
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsConfigError reports whether err is a configuration problem
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
