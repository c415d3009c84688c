// Package schema implements SchemaAdapter (spec §4.4): wraps a tool call,
// detects column-not-found style errors (or suspiciously empty results),
// and retries once with a fuzzy-corrected parameter value.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/abhishec/purple-agent/internal/taskerr"
)

// aliasTable holds the ten canonical columns the spec calls for, each with
// 2–5 known variant spellings seen across tool-server schemas.
var aliasTable = map[string]string{
	"cust_id": "customer_id", "customerid": "customer_id", "client_id": "customer_id", "cid": "customer_id",
	"inv_no": "invoice_number", "invoice_no": "invoice_number", "invoicenum": "invoice_number", "inv_num": "invoice_number",
	"amt": "amount", "total_amount": "amount", "sum": "amount", "value": "amount",
	"duedate": "due_date", "due_dt": "due_date", "payment_due": "due_date", "due": "due_date",
	"acct_id": "account_id", "accountid": "account_id", "acc_id": "account_id",
	"state": "status", "stat": "status",
	"created": "created_at", "create_date": "created_at", "createdon": "created_at", "created_ts": "created_at",
	"email_address": "email", "mail": "email", "e_mail": "email",
	"vendor": "vendor_id", "supplier_id": "vendor_id", "vendorid": "vendor_id",
	"dept": "department", "department_name": "department", "division": "department",
}

var columnErrorPattern = regexp.MustCompile(`(?i)(?:column|unknown column|no such column)\s*[:\s"']*([A-Za-z0-9_]+)`)

// minConfidence is the acceptance threshold across all correction strategies.
const minConfidence = 0.6

// ToolCaller is the minimal shape SchemaAdapter needs to invoke and
// re-invoke a tool.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// DescribeColumnsFunc fetches the authoritative column list for the table a
// tool call targets, typically by invoking describe_table.
type DescribeColumnsFunc func(ctx context.Context) ([]string, error)

// Adapter wraps tool calls with schema-drift correction. One Adapter is
// scoped to a session so its cache only ever benefits calls within that
// session (per §4.4: "caches bad → good in the session schema cache").
type Adapter struct {
	mu    sync.Mutex
	cache map[string]string // bad -> good, scoped to this Adapter's session
}

// NewAdapter returns an Adapter with an empty schema cache.
func NewAdapter() *Adapter {
	return &Adapter{cache: make(map[string]string)}
}

// Call invokes toolName via caller with params, applying schema-drift
// correction to the parameter named paramKey when the call errors with a
// column-not-found message or returns an empty result.
func (a *Adapter) Call(
	ctx context.Context,
	caller ToolCaller,
	describe DescribeColumnsFunc,
	toolName string,
	params map[string]any,
	paramKey string,
) (string, error) {
	if cached, ok := a.cachedCorrection(paramKey, params); ok {
		params = withParam(params, paramKey, cached)
	}

	result, err := caller.CallTool(ctx, toolName, params)
	badName := ""
	if err != nil {
		if m := columnErrorPattern.FindStringSubmatch(err.Error()); m != nil {
			badName = m[1]
		}
	} else if result == "" {
		if v, ok := params[paramKey].(string); ok {
			badName = v
		}
	}

	if badName == "" {
		if err != nil {
			return "", err
		}
		return result, nil
	}

	columns, descErr := describe(ctx)
	if descErr != nil {
		return "", taskerr.SchemaDriftUnrecoverable("describe_table unavailable: " + descErr.Error())
	}

	good, confidence, found := a.correct(badName, columns)
	if !found || confidence < minConfidence {
		return "", taskerr.SchemaDriftUnrecoverable(
			fmt.Sprintf("no correction candidate reached confidence %.2f for column %q", minConfidence, badName))
	}

	retried := withParam(params, paramKey, good)
	result2, err2 := caller.CallTool(ctx, toolName, retried)
	if err2 != nil {
		return "", taskerr.SchemaDriftUnrecoverable("retry with corrected column " + good + " failed: " + err2.Error())
	}

	a.mu.Lock()
	a.cache[badName] = good
	a.mu.Unlock()

	return result2, nil
}

func (a *Adapter) cachedCorrection(paramKey string, params map[string]any) (string, bool) {
	v, ok := params[paramKey].(string)
	if !ok {
		return "", false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	good, ok := a.cache[v]
	return good, ok
}

func withParam(params map[string]any, key string, value string) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

// correct runs the five-step pipeline in order and returns the first hit
// with confidence ≥ minConfidence. When no step hits, the identity step
// returns badName unchanged with confidence 0 and found=false.
func (a *Adapter) correct(badName string, columns []string) (string, float64, bool) {
	// 1. Exact alias table lookup.
	if good, ok := aliasTable[strings.ToLower(badName)]; ok {
		for _, c := range columns {
			if c == good {
				return good, 1.0, true
			}
		}
	}

	// 2. difflib-style LCS ratio against the live column list.
	if good, ratio, ok := bestByLCSRatio(badName, columns); ok && ratio >= minConfidence {
		return good, ratio, true
	}

	// 3. Levenshtein ratio, threshold 0.7.
	if good, ratio, ok := bestByLevenshtein(badName, columns); ok && ratio >= 0.7 {
		return good, ratio, true
	}

	// 4. Common-prefix match, at least 3 characters.
	if good, ok := bestByPrefix(badName, columns); ok {
		return good, minConfidence, true
	}

	// 5. Identity — no change, signal "not found" to the caller.
	return badName, 0, false
}

func bestByLCSRatio(name string, columns []string) (string, float64, bool) {
	dmp := diffmatchpatch.New()
	var best string
	var bestRatio float64
	for _, c := range columns {
		diffs := dmp.DiffMain(name, c, false)
		ratio := lcsRatio(diffs, len(name), len(c))
		if ratio > bestRatio {
			bestRatio = ratio
			best = c
		}
	}
	return best, bestRatio, best != ""
}

// lcsRatio mirrors Python difflib.SequenceMatcher.ratio(): 2*M / T, where M
// is the total length of matching (DiffEqual) runs and T is the combined
// length of both strings.
func lcsRatio(diffs []diffmatchpatch.Diff, lenA, lenB int) float64 {
	total := lenA + lenB
	if total == 0 {
		return 1.0
	}
	var matching int
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matching += len(d.Text)
		}
	}
	return float64(2*matching) / float64(total)
}

func bestByLevenshtein(name string, columns []string) (string, float64, bool) {
	params := levenshtein.NewParams()
	var best string
	var bestRatio float64
	for _, c := range columns {
		ratio := levenshtein.Match(name, c, params)
		if ratio > bestRatio {
			bestRatio = ratio
			best = c
		}
	}
	return best, bestRatio, best != ""
}

func bestByPrefix(name string, columns []string) (string, bool) {
	lowerName := strings.ToLower(name)
	var best string
	bestLen := 2 // require at least 3 matching characters
	for _, c := range columns {
		lowerC := strings.ToLower(c)
		n := commonPrefixLen(lowerName, lowerC)
		if n > bestLen {
			bestLen = n
			best = c
		}
	}
	return best, best != ""
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

