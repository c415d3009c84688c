// Package mutation implements MutationVerifier (spec §4.5): after a
// successful write call, derives and executes the corresponding read call
// as an immediate read-back, and records the outcome in a mutation log.
package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abhishec/purple-agent/internal/hitl"
)

// Status is the outcome of a single read-back verification.
type Status string

const (
	StatusVerified     Status = "VERIFIED"
	StatusFailed       Status = "FAILED"
	StatusUnverifiable Status = "UNVERIFIABLE"
)

// Entry is one row of the mutation log.
type Entry struct {
	WriteCall string    `json:"write_call"`
	ReadCall  string    `json:"read_call"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// writeToRead is the 14-entry write→read table from §4.5. Prefix-derived
// pairs (update_X/create_X/approve_X/revoke_X → get_X) are handled
// separately by deriveReadTool and are not listed here.
var writeToRead = map[string]string{
	"submit_expense_report":  "get_expense_report",
	"process_payment":        "get_payment_status",
	"close_ticket":           "get_ticket",
	"assign_owner":           "get_owner",
	"reconcile_account":      "get_account",
	"schedule_maintenance":   "get_maintenance_schedule",
	"issue_refund":           "get_refund_status",
	"cancel_subscription":    "get_subscription",
	"escalate_case":          "get_case",
	"merge_duplicate_record": "get_record",
	"adjust_inventory":       "get_inventory",
	"terminate_contract":     "get_contract",
	"send_notification":      "get_notification_status",
	"archive_record":         "get_record",
}

var prefixPairs = []struct{ write, read string }{
	{"update_", "get_"},
	{"create_", "get_"},
	{"approve_", "get_"},
	{"revoke_", "get_"},
}

// deriveReadTool returns the read tool name paired with writeTool, or ""
// if none of the table entries or prefix heuristics match.
func deriveReadTool(writeTool string) string {
	if read, ok := writeToRead[writeTool]; ok {
		return read
	}
	for _, p := range prefixPairs {
		if strings.HasPrefix(writeTool, p.write) {
			return p.read + strings.TrimPrefix(writeTool, p.write)
		}
	}
	return ""
}

// primaryKeyParams lists the parameter names checked, in order, to find
// the primary key to pass through to the derived read call.
var primaryKeyParams = []string{"id", "account_id", "customer_id", "record_id", "ticket_id"}

func extractPrimaryKey(params map[string]any) (string, any, bool) {
	for _, k := range primaryKeyParams {
		if v, ok := params[k]; ok {
			return k, v, true
		}
	}
	return "", nil, false
}

// ToolCaller is the minimal shape Verify needs to run the derived read.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// Log accumulates mutation log entries for one task.
type Log struct {
	entries []Entry
}

// NewLog returns an empty mutation log.
func NewLog() *Log { return &Log{} }

// Verify should be called after a successful write-class tool call. It is a
// no-op (returns ok=false) when writeTool does not classify as mutate, per
// §4.5's scope. It never returns an error: failures are recorded in the log
// and the pipeline continues regardless.
func (l *Log) Verify(ctx context.Context, caller ToolCaller, writeTool string, writeParams map[string]any) (Entry, bool) {
	if hitl.Classify(writeTool) != hitl.ClassMutate {
		return Entry{}, false
	}

	readTool := deriveReadTool(writeTool)
	if readTool == "" {
		entry := Entry{WriteCall: writeTool, ReadCall: "", Status: StatusUnverifiable, Timestamp: time.Now()}
		l.entries = append(l.entries, entry)
		return entry, true
	}

	key, value, found := extractPrimaryKey(writeParams)
	if !found {
		entry := Entry{WriteCall: writeTool, ReadCall: readTool, Status: StatusUnverifiable, Timestamp: time.Now()}
		l.entries = append(l.entries, entry)
		return entry, true
	}

	_, err := caller.CallTool(ctx, readTool, map[string]any{key: value})
	status := StatusVerified
	if err != nil {
		status = StatusFailed
	}
	entry := Entry{WriteCall: writeTool, ReadCall: readTool, Status: status, Timestamp: time.Now()}
	l.entries = append(l.entries, entry)
	return entry, true
}

// Entries returns the accumulated log entries, in recorded order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Render formats the log as the "## Mutation Verification Log" section
// appended to the final answer.
func (l *Log) Render() string {
	if len(l.entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Mutation Verification Log\n")
	for _, e := range l.entries {
		fmt.Fprintf(&b, "- %s → %s: %s (%s)\n", e.WriteCall, e.ReadCall, e.Status, e.Timestamp.Format(time.RFC3339))
	}
	return b.String()
}
