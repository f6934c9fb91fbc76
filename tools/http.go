package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	getTool "github.com/cloudwego/eino-ext/components/tool/httprequest/get"
	postTool "github.com/cloudwego/eino-ext/components/tool/httprequest/post"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/tk103331/eino-chatlab/config"
)

func headersOf(cfg config.Tool) map[string]string {
	headers := make(map[string]string)
	if v, ok := cfg.Config["headers"]; ok && v.IsMap() {
		for k, hv := range v.Map() {
			headers[k] = hv.String()
		}
	}
	return headers
}

// NewHTTPRequestTool creates the generic GET or POST request tool. The model
// chooses the URL.
func NewHTTPRequestTool(ctx context.Context, _ string, cfg config.Tool) (tool.InvokableTool, error) {
	headers := headersOf(cfg)
	if ua := stringOr(cfg, "user_agent", ""); ua != "" {
		headers["User-Agent"] = ua
	}
	client := &http.Client{
		Timeout: time.Duration(intOr(cfg, "timeout", 30)) * time.Second,
	}

	if strings.EqualFold(stringOr(cfg, "method", http.MethodGet), http.MethodPost) {
		return postTool.NewTool(ctx, &postTool.Config{Headers: headers, HttpClient: client})
	}
	return getTool.NewTool(ctx, &getTool.Config{Headers: headers, HttpClient: client})
}

// HTTPConfig describes a templated request. URL, body and header values are
// text/template strings executed against the tool arguments.
type HTTPConfig struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// HTTPTool calls one fixed endpoint with arguments filled in from the model
type HTTPTool struct {
	info   *schema.ToolInfo
	conf   HTTPConfig
	client *http.Client
}

var paramTypes = map[string]schema.DataType{
	"string":  schema.String,
	"number":  schema.Number,
	"integer": schema.Integer,
	"boolean": schema.Boolean,
	"array":   schema.Array,
	"object":  schema.Object,
}

// NewHTTPTool creates a customhttp tool. The url config key is required.
func NewHTTPTool(_ context.Context, name string, cfg config.Tool) (tool.InvokableTool, error) {
	conf := HTTPConfig{
		URL:     stringOr(cfg, "url", ""),
		Method:  strings.ToUpper(stringOr(cfg, "method", http.MethodGet)),
		Headers: headersOf(cfg),
		Body:    stringOr(cfg, "body", ""),
		Timeout: time.Duration(intOr(cfg, "timeout", 30)) * time.Second,
	}
	if conf.URL == "" {
		return nil, fmt.Errorf("customhttp tool %s: url is required", name)
	}

	desc := cfg.Description
	if desc == "" {
		desc = "HTTP tool"
	}

	params := make(map[string]*schema.ParameterInfo, len(cfg.Params))
	for _, p := range cfg.Params {
		dt, ok := paramTypes[p.Type]
		if !ok {
			dt = schema.String
		}
		params[p.Name] = &schema.ParameterInfo{
			Type:     dt,
			Desc:     p.Description,
			Required: p.Required,
		}
	}

	return &HTTPTool{
		info: &schema.ToolInfo{
			Name:        name,
			Desc:        desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		conf:   conf,
		client: &http.Client{Timeout: conf.Timeout},
	}, nil
}

// Info returns the tool description
func (h *HTTPTool) Info(context.Context) (*schema.ToolInfo, error) {
	return h.info, nil
}

// InvokableRun renders the request from the JSON arguments and returns the
// response body
func (h *HTTPTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args map[string]any
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}

	url, err := renderTemplate(h.conf.URL, args)
	if err != nil {
		return "", fmt.Errorf("failed to render url: %w", err)
	}

	var body io.Reader
	if h.conf.Body != "" {
		s, err := renderTemplate(h.conf.Body, args)
		if err != nil {
			return "", fmt.Errorf("failed to render body: %w", err)
		}
		body = strings.NewReader(s)
	}

	req, err := http.NewRequestWithContext(ctx, h.conf.Method, url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range h.conf.Headers {
		hv, err := renderTemplate(v, args)
		if err != nil {
			return "", fmt.Errorf("failed to render header %s: %w", k, err)
		}
		req.Header.Set(k, hv)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, respBody)
	}
	return string(respBody), nil
}

func renderTemplate(text string, args map[string]any) (string, error) {
	tmpl, err := template.New("http").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args); err != nil {
		return "", err
	}
	return buf.String(), nil
}
