package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhishec/purple-agent/internal/toolrpc"
)

// ToolCaller is the shape every strategy needs to invoke a tool: satisfied
// directly by *toolrpc.Client, and by worker's layered call stack
// (MutationVerifier→RecoveryAgent→SchemaAdapter→PaginatedFetcher) when one
// is configured instead.
type ToolCaller interface {
	Call(ctx context.Context, name string, params map[string]any) (string, error)
}

// toolCallRequest is the shape an LLM response must match to request a tool
// invocation instead of a direct answer.
type toolCallRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// parseToolCall extracts a tool-call request from raw LLM output, tolerating
// surrounding prose. Returns ok=false when no such request is present. A
// fenced ```yaml block is tried first, the bare-JSON-object form second, so
// a model that answers with a YAML tool call (the format this prompt's
// counterpart models are also trained on) is never treated as plain text.
func parseToolCall(raw string) (toolCallRequest, bool) {
	if req, ok := parseYAMLToolCall(raw); ok {
		return req, true
	}

	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return toolCallRequest{}, false
	}
	var req toolCallRequest
	if err := json.Unmarshal([]byte(jsonText), &req); err != nil || req.Tool == "" {
		return toolCallRequest{}, false
	}
	return req, true
}

// parseYAMLToolCall extracts a ```yaml fenced tool-call block and unmarshals
// it into a toolCallRequest.
func parseYAMLToolCall(raw string) (toolCallRequest, bool) {
	block, ok := extractFencedYAML(raw)
	if !ok {
		return toolCallRequest{}, false
	}
	var req toolCallRequest
	if err := yaml.Unmarshal([]byte(block), &req); err != nil || req.Tool == "" {
		return toolCallRequest{}, false
	}
	return req, true
}

func extractFencedYAML(text string) (string, bool) {
	const fence = "```yaml"
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// toolsPrompt renders a tool list the way the teacher's GenerateToolsPrompt
// does (name + description, one per line) for inclusion in an instruction
// prompt.
func toolsPrompt(tools []toolrpc.ToolSchema) string {
	if len(tools) == 0 {
		return "No tools are available; answer directly."
	}
	var b strings.Builder
	b.WriteString("Available tools (respond with {\"tool\": \"<name>\", \"params\": {...}} to call one, or plain text to answer directly):\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

// callTool is the single-hop tool invocation every strategy shares: call
// the named tool once and render its result for inclusion in a follow-up
// prompt.
func callTool(ctx context.Context, client ToolCaller, req toolCallRequest) string {
	if client == nil {
		return "tool call unavailable: no tool client configured"
	}
	result, err := client.Call(ctx, req.Tool, req.Params)
	if err != nil {
		return fmt.Sprintf("tool %q failed: %v", req.Tool, err)
	}
	return result
}
