// Package tools is the Tool provider contract (spec §6): "a set of named
// tools, each with a JSON schema for arguments and a synchronous invoke." The
// actual tool implementations (search, news, weather, datetime) are external
// collaborators out of core scope (spec §1) — this package only defines the
// contract and the keyword heuristics the Turn Orchestrator (J step 3) uses to
// decide tool permission, plus an MCP-backed registry for wiring real tools in
// via cmd/companion. Grounded on internal/hivemind/service/mcp/server.go's
// MCPServer (connect, discover, expose as eino tool.BaseTool).
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mcpTool "github.com/cloudwego/eino-ext/components/tool/mcp"
	einoTool "github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/log"
)

var logger = log.For("tools")

// Tool is one named, synchronously-invocable tool the orchestrator may expose
// to the model during a tool-augmented invocation.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any // JSON schema for arguments
	Invoke      func(ctx context.Context, args map[string]any) (string, error)
}

// Provider exposes the set of tools the orchestrator may attach to a model
// call, and resolves tools by name for invocation.
type Provider interface {
	Tools(names []string) []Tool
}

// StaticProvider is a fixed in-memory tool set, used by tests and as the
// default when no MCP servers are configured.
type StaticProvider struct {
	byName map[string]Tool
}

// NewStatic builds a StaticProvider from a fixed tool list.
func NewStatic(list []Tool) *StaticProvider {
	m := make(map[string]Tool, len(list))
	for _, t := range list {
		m[t.Name] = t
	}
	return &StaticProvider{byName: m}
}

// Tools returns the requested subset (skipping unknown names).
func (p *StaticProvider) Tools(names []string) []Tool {
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		if t, ok := p.byName[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// searchKeywords, newsKeywords, etc. back the Turn Orchestrator's keyword
// heuristic (spec §4.J step 3): "Keywords for search/news/time/weather/map are
// enumerated; pure time queries are not treated as search."
var (
	searchKeywords  = []string{"search", "look up", "find out", "google"}
	newsKeywords    = []string{"news", "headline", "latest on"}
	weatherKeywords = []string{"weather", "forecast", "temperature outside"}
	mapKeywords     = []string{"map", "directions", "route to", "nearby"}
	timeKeywords    = []string{"what time", "current time", "what's the date", "today's date"}
)

// NeedsTools classifies an utterance by keyword heuristics into needs_tools,
// per spec §4.J step 3. This decision only controls whether tool definitions
// are attached to the model call — the model itself still decides whether to
// invoke.
func NeedsTools(utterance string) bool {
	lower := strings.ToLower(utterance)
	if containsAny(lower, timeKeywords) && !containsAny(lower, searchKeywords) {
		// Pure time queries are not treated as search (spec §4.J step 3).
		return false
	}
	return containsAny(lower, searchKeywords) ||
		containsAny(lower, newsKeywords) ||
		containsAny(lower, weatherKeywords) ||
		containsAny(lower, mapKeywords)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// MCPRegistry connects to one or more MCP servers and exposes their
// discovered tools as eino tool.BaseTool values for the orchestrator's
// tool-augmented invocation path.
type MCPRegistry struct {
	mu      sync.RWMutex
	servers map[string]client.MCPClient
	tools   []einoTool.BaseTool
}

// NewMCPRegistry builds an empty registry; call Connect per configured server.
func NewMCPRegistry() *MCPRegistry {
	return &MCPRegistry{servers: make(map[string]client.MCPClient)}
}

// Connect performs the MCP handshake against a stdio-transport server and
// merges its discovered tools into the registry (mirrors
// internal/hivemind/service/mcp/server.go's MCPServer.Connect).
func (r *MCPRegistry) Connect(ctx context.Context, name, command string, args, env []string) error {
	cli, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return fmt.Errorf("tools: mcp server %q: new client: %w", name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "soulgraph-companion", Version: "0.1.0"}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("tools: mcp server %q: initialize: %w", name, err)
	}

	discovered, err := mcpTool.GetTools(ctx, &mcpTool.Config{Cli: cli})
	if err != nil {
		return fmt.Errorf("tools: mcp server %q: get tools: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[name] = cli
	r.tools = append(r.tools, discovered...)
	logger.WithField("server", name).WithField("tool_count", len(discovered)).Info("mcp server connected")
	return nil
}

// EinoTools returns every discovered tool across connected servers, ready to
// pass to a tool-augmented eino invocation.
func (r *MCPRegistry) EinoTools() []einoTool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]einoTool.BaseTool, len(r.tools))
	copy(out, r.tools)
	return out
}

var _ Provider = (*MCPRegistry)(nil)

// Tools implements Provider: the requested names are resolved against the
// discovered MCP tool set, each match adapted behind the synchronous Invoke
// contract by marshaling its arguments to the JSON the MCP transport expects.
func (r *MCPRegistry) Tools(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	out := make([]Tool, 0, len(names))
	for _, bt := range r.tools {
		info, err := bt.Info(context.Background())
		if err != nil || info == nil || !want[info.Name] {
			continue
		}
		inv, ok := bt.(einoTool.InvokableTool)
		if !ok {
			continue
		}
		out = append(out, Tool{
			Name:        info.Name,
			Description: info.Desc,
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				data, err := jsonutil.Marshal(args)
				if err != nil {
					return "", fmt.Errorf("tools: marshal args: %w", err)
				}
				return inv.InvokableRun(ctx, string(data))
			},
		})
	}
	return out
}

// Close releases every connected client.
func (r *MCPRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, cli := range r.servers {
		if err := cli.Close(); err != nil {
			logger.WithError(err).WithField("server", name).Warn("failed to close mcp client")
		}
	}
	r.servers = make(map[string]client.MCPClient)
	r.tools = nil
}
