package toolregistry

import (
	"context"
	"fmt"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// ServerConfig is one entry of an MCP server config, grounded on the mcpServers
// stanza the original system's tools/mcp_manager.py reads (command, args, env for a
// stdio-launched server process).
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// MCPRegistry connects to one or more MCP servers over stdio, indexes their tools by
// name, and dispatches Invoke calls to whichever server owns the tool. Connections
// are established by Connect, which starts every configured server; Invoke does not
// start a server on demand, so a tool is unknown until Connect has indexed it.
type MCPRegistry struct {
	logger zerolog.Logger

	mu          sync.Mutex
	serverCfgs  map[string]ServerConfig
	connections map[string]*mcpclient.Client
	toolServer  map[string]string
	descriptors []Descriptor
	byName      map[string]Descriptor
}

// NewMCPRegistry creates a registry over the given server configs. Tool discovery
// happens lazily via Connect, not at construction time.
func NewMCPRegistry(servers []ServerConfig, logger zerolog.Logger) *MCPRegistry {
	cfgs := make(map[string]ServerConfig, len(servers))
	for _, s := range servers {
		cfgs[s.Name] = s
	}
	return &MCPRegistry{
		logger:      logger,
		serverCfgs:  cfgs,
		connections: make(map[string]*mcpclient.Client),
		toolServer:  make(map[string]string),
		byName:      make(map[string]Descriptor),
	}
}

// Connect starts every configured server and indexes its tools. Must be called
// before Has/Schema/Descriptors return anything useful.
func (r *MCPRegistry) Connect(ctx context.Context) error {
	for name := range r.serverCfgs {
		if err := r.ensureServer(ctx, name); err != nil {
			return fmt.Errorf("toolregistry: connecting to mcp server %q: %w", name, err)
		}
	}
	return nil
}

func (r *MCPRegistry) ensureServer(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[name]; ok {
		return nil
	}
	cfg, ok := r.serverCfgs[name]
	if !ok {
		return fmt.Errorf("no config for mcp server %q", name)
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	c, err := mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return fmt.Errorf("creating stdio client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("starting client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "planrunner", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return fmt.Errorf("initializing: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("listing tools: %w", err)
	}

	for _, t := range listResp.Tools {
		d := Descriptor{Name: t.Name, Description: t.Description, InputSchema: schemaToMap(t.InputSchema)}
		r.byName[t.Name] = d
		r.descriptors = append(r.descriptors, d)
		r.toolServer[t.Name] = name
	}

	r.connections[name] = c
	r.logger.Info().Str("server", name).Int("tools", len(listResp.Tools)).Msg("connected to mcp server")
	return nil
}

func (r *MCPRegistry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byName[name]
	return ok
}

func (r *MCPRegistry) Schema(name string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return d.InputSchema, true
}

func (r *MCPRegistry) Descriptors() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

func (r *MCPRegistry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.Lock()
	serverName, ok := r.toolServer[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("toolregistry: unknown mcp tool %q", name)
	}
	client := r.connections[serverName]
	r.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("toolregistry: mcp server %q not connected", serverName)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("toolregistry: mcp call to %q failed: %w", name, err)
	}
	return simplifyResult(resp), nil
}

// Close shuts down every connected server.
func (r *MCPRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, c := range r.connections {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing mcp server %q: %w", name, err)
		}
	}
	return firstErr
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	m := map[string]any{"type": schema.Type}
	if schema.Properties != nil {
		m["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	return m
}

// simplifyResult mirrors MCPToolManager._simplify_response: collapse text content
// blocks into a bare string (single block) or a list of strings (multiple blocks)
// rather than exposing the full MCP content envelope to callers.
func simplifyResult(resp *mcp.CallToolResult) any {
	if resp == nil {
		return nil
	}
	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if resp.IsError {
		if len(texts) > 0 {
			return map[string]any{"error": texts[0]}
		}
		return map[string]any{"error": "unknown error"}
	}
	switch len(texts) {
	case 0:
		return nil
	case 1:
		return texts[0]
	default:
		out := make([]any, len(texts))
		for i, t := range texts {
			out[i] = t
		}
		return out
	}
}
