package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"gopkg.in/yaml.v3"
)

// Private global variable to store configuration
var globalConfig *Config

const (
	DefaultAddr          = ":3000"
	DefaultDatabasePath  = "chatlab.db"
	DefaultOpenMarker    = "<mdsnippet>"
	DefaultCloseMarker   = "</mdsnippet>"
	DefaultMaxIterations = 10
	DefaultHistoryLimit  = 50
	DefaultMaxBodyBytes  = 1 << 20
)

// Config represents the configuration for chatlab
type Config struct {
	Server     Server               `yaml:"server,omitempty"`
	Database   Database             `yaml:"database,omitempty"`
	Log        Log                  `yaml:"log,omitempty"`
	Chat       Chat                 `yaml:"chat"`
	Providers  map[string]Provider  `yaml:"providers,omitempty"`
	Models     map[string]Model     `yaml:"models,omitempty"`
	MCPServers map[string]MCPServer `yaml:"mcp_servers,omitempty"`
	Tools      map[string]Tool      `yaml:"tools,omitempty"`
	Settings   Settings             `yaml:"settings,omitempty"`
}

// Server holds HTTP listener settings
type Server struct {
	Addr         string        `yaml:"addr,omitempty"`
	StaticDir    string        `yaml:"static_dir,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes,omitempty"`
}

// Database holds the SQLite database location
type Database struct {
	Path string `yaml:"path,omitempty"`
}

// Log holds logger settings
type Log struct {
	Path    string `yaml:"path,omitempty"`
	Level   string `yaml:"level,omitempty"`
	Console bool   `yaml:"console,omitempty"`
}

// Chat is the conversation the server offers to participants
type Chat struct {
	System        string     `yaml:"system,omitempty"`
	Model         string     `yaml:"model"`
	ReadmeModel   string     `yaml:"readme_model,omitempty"`
	Tools         []string   `yaml:"tools,omitempty"`
	MCPServers    []string   `yaml:"mcp_servers,omitempty"`
	MaxIterations int        `yaml:"max_iterations,omitempty"`
	HistoryLimit  int        `yaml:"history_limit,omitempty"`
	Delimiters    Delimiters `yaml:"delimiters,omitempty"`
}

// Delimiters are the literal markers the model wraps markdown snippets in
type Delimiters struct {
	Open  string `yaml:"open,omitempty"`
	Close string `yaml:"close,omitempty"`
}

// Provider represents AI provider configuration
type Provider struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Model represents AI model configuration
type Model struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	TopP        float64 `yaml:"top_p,omitempty"`
	TopK        int     `yaml:"top_k,omitempty"`
}

// MCPServer represents MCP server configuration
type MCPServer struct {
	Type string `yaml:"type"`
	// for stdio
	Cmd  string            `yaml:"cmd,omitempty"`
	Args []string          `yaml:"args,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
	// for sse & streamable-http
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Tool represents tool configuration
type Tool struct {
	Type        string           `yaml:"type"`
	Description string           `yaml:"description,omitempty"`
	Config      map[string]Value `yaml:"config,omitempty"`
	Params      []ToolParam      `yaml:"params,omitempty"`
}

// ToolParam represents tool parameter configuration
type ToolParam struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
}

// Settings global settings
type Settings struct {
	Langfuse *langfuse.Config `yaml:"langfuse,omitempty"`
}

// LoadConfig loads configuration from file and saves to global variable
func LoadConfig(configPath string) (*Config, error) {
	// Check if configuration file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Save to global variable
	globalConfig = cfg

	return cfg, nil
}

// Parse decodes YAML configuration. ${VAR} references are expanded from the
// environment first, so API keys can stay out of the file.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields. PORT wins over server.addr.
func (c *Config) ApplyDefaults() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Chat.MaxIterations <= 0 {
		c.Chat.MaxIterations = DefaultMaxIterations
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = DefaultHistoryLimit
	}
	if c.Chat.Delimiters.Open == "" {
		c.Chat.Delimiters.Open = DefaultOpenMarker
	}
	if c.Chat.Delimiters.Close == "" {
		c.Chat.Delimiters.Close = DefaultCloseMarker
	}
	if c.Chat.ReadmeModel == "" {
		c.Chat.ReadmeModel = c.Chat.Model
	}
}

// Validate checks that everything the chat references is configured
func (c *Config) Validate() error {
	if c.Chat.Model != "" {
		if err := c.validateModel(c.Chat.Model); err != nil {
			return err
		}
	}
	if c.Chat.ReadmeModel != "" && c.Chat.ReadmeModel != c.Chat.Model {
		if err := c.validateModel(c.Chat.ReadmeModel); err != nil {
			return err
		}
	}
	for _, name := range c.Chat.Tools {
		if _, ok := c.Tools[name]; !ok {
			return fmt.Errorf("chat references unknown tool: %s", name)
		}
	}
	for _, name := range c.Chat.MCPServers {
		if _, ok := c.MCPServers[name]; !ok {
			return fmt.Errorf("chat references unknown MCP server: %s", name)
		}
	}
	if c.Chat.Delimiters.Open == c.Chat.Delimiters.Close {
		return fmt.Errorf("chat delimiters must differ: %q", c.Chat.Delimiters.Open)
	}
	return nil
}

func (c *Config) validateModel(name string) error {
	m, ok := c.Models[name]
	if !ok {
		return fmt.Errorf("model configuration does not exist: %s", name)
	}
	if _, ok := c.Providers[m.Provider]; !ok {
		return fmt.Errorf("provider configuration does not exist: %s (model %s)", m.Provider, name)
	}
	return nil
}

// GetConfig gets global configuration
func GetConfig() *Config {
	return globalConfig
}

// SetConfig replaces the global configuration
func SetConfig(cfg *Config) {
	globalConfig = cfg
}
