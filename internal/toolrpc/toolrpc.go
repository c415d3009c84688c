// Package toolrpc is the outbound client for the tool-server RPC surface
// (spec §6): discover_tools(endpoint, session_id) and
// call_tool(endpoint, name, params, session_id). The wire protocol and
// connection lifecycle are adapted from the teacher's internal/mcp/client.go,
// trimmed to the single SSE-connected-tool-server shape this spec needs —
// no stdio transport, no multi-server manager, no config-file reload, since
// the spec names exactly one tools endpoint (GREEN_AGENT_MCP_URL).
package toolrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sdkclient "github.com/mark3labs/mcp-go/client"
	sdkmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/abhishec/purple-agent/internal/taskerr"
)

// ToolSchema is one entry of discover_tools' response: a model-tool-call
// shaped schema (name, description, JSON-schema input) per spec §6.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Client is a connection to one tool-server endpoint. It is safe for
// concurrent use; the underlying SDK connection is guarded by mu.
type Client struct {
	mu       sync.RWMutex
	endpoint string
	inner    sdkclient.MCPClient
}

// NewClient returns an unconnected client for endpoint. Connect must be
// called before Discover or Call.
func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint}
}

// Connect establishes the SSE transport connection and performs the
// handshake. sessionID is carried as client metadata so the tool server can
// correlate calls from the same task run.
func (c *Client) Connect(ctx context.Context, sessionID string) error {
	cli, err := sdkclient.NewSSEMCPClient(c.endpoint)
	if err != nil {
		return taskerr.ToolCall(fmt.Sprintf("create client for %q", c.endpoint), err)
	}
	if err := cli.Start(ctx); err != nil {
		return taskerr.ToolCall(fmt.Sprintf("start client for %q", c.endpoint), err)
	}

	_, err = cli.Initialize(ctx, sdkmcp.InitializeRequest{
		Params: sdkmcp.InitializeParams{
			ProtocolVersion: sdkmcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdkmcp.Implementation{
				Name:    "taskworker",
				Version: sessionID,
			},
		},
	})
	if err != nil {
		_ = cli.Close()
		return taskerr.ToolCall(fmt.Sprintf("initialize %q", c.endpoint), err)
	}

	c.mu.Lock()
	c.inner = cli
	c.mu.Unlock()
	return nil
}

// Discover implements discover_tools(endpoint, session_id). endpoint and
// session_id are fixed at Connect time; this call only performs the RPC.
func (c *Client) Discover(ctx context.Context) ([]ToolSchema, error) {
	c.mu.RLock()
	inner := c.inner
	c.mu.RUnlock()
	if inner == nil {
		return nil, taskerr.ToolCall(fmt.Sprintf("client %q not connected", c.endpoint), nil)
	}

	result, err := inner.ListTools(ctx, sdkmcp.ListToolsRequest{})
	if err != nil {
		return nil, taskerr.ToolCall(fmt.Sprintf("discover_tools %q", c.endpoint), err)
	}

	schemas := make([]ToolSchema, 0, len(result.Tools))
	for _, t := range result.Tools {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			raw = json.RawMessage("{}")
		}
		schemas = append(schemas, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: raw,
		})
	}
	return schemas, nil
}

// Call implements call_tool(endpoint, name, params, session_id). It returns
// the concatenated text content of the tool result, or a ToolCallError
// wrapping the server-reported message when the tool server sets IsError.
func (c *Client) Call(ctx context.Context, name string, params map[string]any) (string, error) {
	c.mu.RLock()
	inner := c.inner
	c.mu.RUnlock()
	if inner == nil {
		return "", taskerr.ToolCall(fmt.Sprintf("client %q not connected", c.endpoint), nil)
	}

	req := sdkmcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = params

	result, err := inner.CallTool(ctx, req)
	if err != nil {
		return "", taskerr.ToolCall(fmt.Sprintf("call_tool %q on %q", name, c.endpoint), err)
	}

	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(sdkmcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		return "", taskerr.ToolCall(fmt.Sprintf("tool %q returned error: %s", name, text), nil)
	}
	return text, nil
}

// Close terminates the connection. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()
	if inner == nil {
		return nil
	}
	return inner.Close()
}
