package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/abhishec/purple-agent/internal/hitl"
	"github.com/abhishec/purple-agent/internal/mutation"
	"github.com/abhishec/purple-agent/internal/pagination"
	"github.com/abhishec/purple-agent/internal/recovery"
	"github.com/abhishec/purple-agent/internal/schema"
	"github.com/abhishec/purple-agent/internal/toolrpc"
)

// toolStack composes the layered tool-call chain from the EXECUTE step's
// MutationVerifier → RecoveryAgent → SchemaAdapter → PaginatedFetcher →
// direct call pipeline behind the single ToolCaller shape every strategy
// already calls through, so none of the strategies need to know the stack
// exists.
type toolStack struct {
	client *toolrpc.Client
	schema *schema.Adapter
	mutLog *mutation.Log
	calls  int64
}

func newToolStack(client *toolrpc.Client) *toolStack {
	return &toolStack{client: client, schema: schema.NewAdapter(), mutLog: mutation.NewLog()}
}

// Call is the entry point strategy.ToolCaller requires: every strategy's
// tool hop lands here first.
func (s *toolStack) Call(ctx context.Context, name string, params map[string]any) (string, error) {
	atomic.AddInt64(&s.calls, 1)
	result, err := recovery.Call(ctx, recoveryHop{s}, name, params)
	if err == nil && hitl.Classify(name) == hitl.ClassMutate {
		s.mutLog.Verify(ctx, mutationHop{s}, name, params)
	}
	return result, err
}

// CallTool is the name mutation.ToolCaller, schema.ToolCaller, and
// recovery.ToolCaller all expect; it forwards to the same call-once layer
// Call uses, so a read-back or a schema retry never re-enters recovery's
// backoff loop or re-triggers mutation verification.
func (s *toolStack) CallTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return s.callOnce(ctx, name, params)
}

type recoveryHop struct{ s *toolStack }

func (h recoveryHop) CallTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return h.s.callOnce(ctx, name, params)
}

type mutationHop struct{ s *toolStack }

func (h mutationHop) CallTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return h.s.callOnce(ctx, name, params)
}

type directHop struct{ client *toolrpc.Client }

func (h directHop) CallTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return h.client.Call(ctx, name, params)
}

// callOnce runs the schema-adapter/pagination/direct layer for a single
// attempt, underneath RecoveryAgent's retry loop.
func (s *toolStack) callOnce(ctx context.Context, name string, params map[string]any) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("worker: no tool client configured for %q", name)
	}

	if strings.HasPrefix(name, "list_") {
		records, err := pagination.FetchAll(ctx, paginatedTool{client: s.client, name: name}, params)
		if err != nil {
			return "", err
		}
		return renderRecords(records), nil
	}

	if key, ok := columnParamKey(params); ok {
		return s.schema.Call(ctx, directHop{s.client}, s.describeColumns(name), name, params, key)
	}

	return s.client.Call(ctx, name, params)
}

// describeColumns derives the table name from a get_<table> tool name and
// fetches its authoritative column list via describe_table, the shape
// SchemaAdapter's DescribeColumnsFunc needs.
func (s *toolStack) describeColumns(toolName string) schema.DescribeColumnsFunc {
	table := strings.TrimSuffix(strings.TrimPrefix(toolName, "get_"), "s")
	return func(ctx context.Context) ([]string, error) {
		raw, err := s.client.Call(ctx, "describe_table", map[string]any{"table": table})
		if err != nil {
			return nil, err
		}
		return parseColumnList(raw), nil
	}
}

// columnParamKey returns the parameter most likely to carry a column name,
// the one piece SchemaAdapter.Call needs the caller to already know.
func columnParamKey(params map[string]any) (string, bool) {
	for _, k := range []string{"col", "column", "field"} {
		if v, ok := params[k]; ok {
			if _, isString := v.(string); isString {
				return k, true
			}
		}
	}
	return "", false
}

func parseColumnList(raw string) []string {
	var tagged struct {
		Columns []string `json:"columns"`
	}
	if err := json.Unmarshal([]byte(raw), &tagged); err == nil && len(tagged.Columns) > 0 {
		return tagged.Columns
	}
	var plain []string
	if err := json.Unmarshal([]byte(raw), &plain); err == nil {
		return plain
	}
	return nil
}

type paginatedTool struct {
	client *toolrpc.Client
	name   string
}

func (p paginatedTool) FetchPage(ctx context.Context, params map[string]any) (pagination.Page, error) {
	raw, err := p.client.Call(ctx, p.name, params)
	if err != nil {
		return pagination.Page{}, err
	}
	return parsePage(raw), nil
}

func parsePage(raw string) pagination.Page {
	var payload struct {
		Records  []map[string]any `json:"records"`
		NextPage int              `json:"next_page"`
		Cursor   string           `json:"cursor"`
		Offset   int              `json:"offset"`
		Total    int              `json:"total"`
		HasMore  bool             `json:"has_more"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return pagination.Page{}
	}
	return pagination.Page{
		Records: payload.Records, NextPage: payload.NextPage, Cursor: payload.Cursor,
		Offset: payload.Offset, Total: payload.Total, HasMore: payload.HasMore,
	}
}

func renderRecords(records []map[string]any) string {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Sprintf("%d record(s) fetched", len(records))
	}
	return string(raw)
}

// CallCount reports how many tool calls this stack has dispatched, feeding
// the quality scorer's ToolCallCount input.
func (s *toolStack) CallCount() int {
	return int(atomic.LoadInt64(&s.calls))
}

// MutationLog exposes the accumulated verification entries for rendering
// into the final answer.
func (s *toolStack) MutationLog() *mutation.Log {
	return s.mutLog
}
