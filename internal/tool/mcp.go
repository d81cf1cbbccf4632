package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"rea/internal/domain"
)

// MCPServerConfig describes one Model Context Protocol server to pull tools from.
type MCPServerConfig struct {
	Name      string
	Transport string // "stdio" | "http"
	Command   string
	Args      []string
	URL       string
	Env       map[string]string // stdio: process environment
	Headers   map[string]string // http: request headers
}

// mcpSession is the subset of *mcpclient.Client the tool source needs.
type mcpSession interface {
	ListTools(ctx context.Context, req mcplib.ListToolsRequest) (*mcplib.ListToolsResult, error)
	CallTool(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error)
	Close() error
}

// MCPClient is an initialized connection to one MCP server.
type MCPClient struct {
	name    string
	session mcpSession
	logger  *slog.Logger
}

// DialMCP connects to the server described by cfg and performs the MCP handshake.
func DialMCP(ctx context.Context, cfg MCPServerConfig, version string, logger *slog.Logger) (*MCPClient, error) {
	var (
		c   *mcpclient.Client
		err error
	)
	switch cfg.Transport {
	case "stdio":
		env := make([]string, 0, len(cfg.Env))
		for _, k := range sortedEnvKeys(cfg.Env) {
			env = append(env, k+"="+cfg.Env[k])
		}
		c, err = mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "http":
		c, err = mcpclient.NewStreamableHttpClient(cfg.URL, mcptransport.WithHTTPHeaders(cfg.Headers))
		if err == nil {
			err = c.Start(ctx)
		}
	default:
		return nil, fmt.Errorf("mcp %s: unsupported transport %q", cfg.Name, cfg.Transport)
	}
	if err != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, fmt.Errorf("mcp %s: connect: %w", cfg.Name, err)
	}
	return NewMCPClient(ctx, cfg.Name, c, version, logger)
}

// NewMCPClient initializes an already started client.
func NewMCPClient(ctx context.Context, name string, c *mcpclient.Client, version string, logger *slog.Logger) (*MCPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res, err := c.Initialize(ctx, mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ProtocolVersion: mcplib.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcplib.Implementation{Name: "rea", Version: version},
		},
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: initialize: %w", name, err)
	}
	logger.Info("mcp server connected", "server", name, "remote", res.ServerInfo.Name, "remote_version", res.ServerInfo.Version)
	return &MCPClient{name: name, session: c, logger: logger}, nil
}

func (m *MCPClient) Close() error { return m.session.Close() }

// Tools lists the server's tools as domain tools named mcp_<server>_<tool>.
func (m *MCPClient) Tools(ctx context.Context) ([]domain.Tool, error) {
	res, err := m.session.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp %s: list tools: %w", m.name, err)
	}
	tools := make([]domain.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, &mcpTool{
			name:        MCPToolName(m.name, t.Name),
			remote:      t.Name,
			description: t.Description,
			schema:      inputSchema(t),
			client:      m,
		})
	}
	m.logger.Debug("mcp tools listed", "server", m.name, "count", len(tools))
	return tools, nil
}

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// MCPToolName is the registry name of a tool exposed by an MCP server.
func MCPToolName(server, tool string) string {
	clean := func(s string) string {
		return strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(s), "_"), "_")
	}
	return "mcp_" + clean(server) + "_" + clean(tool)
}

func inputSchema(t mcplib.Tool) map[string]any {
	data, err := json.Marshal(t)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var wire struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &wire); err != nil || wire.InputSchema == nil {
		return map[string]any{"type": "object"}
	}
	return wire.InputSchema
}

type mcpTool struct {
	name        string
	remote      string
	description string
	schema      map[string]any
	client      *MCPClient
}

func (t *mcpTool) Name() string               { return t.name }
func (t *mcpTool) Description() string        { return t.description }
func (t *mcpTool) Parameters() map[string]any { return t.schema }

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	res, err := t.client.session.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: t.remote, Arguments: args},
	})
	if err != nil {
		return "", fmt.Errorf("mcp %s: %w", t.remote, err)
	}
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcplib.TextContent:
			parts = append(parts, tc.Text)
		case *mcplib.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

func sortedEnvKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ domain.Tool = (*mcpTool)(nil)
