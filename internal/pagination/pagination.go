// Package pagination implements PaginatedFetcher (spec §4.6): wraps
// bulk-read tools, auto-detects the pagination style from the first
// response, and loops until exhaustion or the hard record cap.
package pagination

import (
	"context"
	"fmt"

	"github.com/abhishec/purple-agent/internal/taskerr"
)

// maxRecords is the hard cap on records fetched, regardless of whether the
// source reports more remain.
const maxRecords = 10_000

// Style identifies the pagination convention detected from a response.
type Style string

const (
	StylePageLimit   Style = "page_limit"
	StyleCursorNext  Style = "cursor_next"
	StyleOffsetTotal Style = "offset_total"
	StyleHasMore     Style = "has_more"
	StyleUnknown     Style = "unknown" // single page, no continuation markers
)

// Page is one page of a paginated response: the records themselves plus
// whatever continuation fields the tool reported.
type Page struct {
	Records  []map[string]any
	NextPage int    // page/limit style
	Cursor   string // cursor/next style
	Offset   int    // offset/total style
	Total    int    // offset/total style
	HasMore  bool   // has_more style
}

// Tool is a bulk-read tool callable with a param set, returning one page.
type Tool interface {
	FetchPage(ctx context.Context, params map[string]any) (Page, error)
}

// DetectStyle inspects the first page's populated fields to determine
// which pagination convention the tool uses.
func DetectStyle(first Page) Style {
	switch {
	case first.Cursor != "":
		return StyleCursorNext
	case first.Total > 0:
		return StyleOffsetTotal
	case first.NextPage > 0:
		return StylePageLimit
	case first.HasMore:
		return StyleHasMore
	default:
		return StyleUnknown
	}
}

// FetchAll loops tool until exhaustion or maxRecords, returning the
// combined record set.
func FetchAll(ctx context.Context, tool Tool, params map[string]any) ([]map[string]any, error) {
	first, err := tool.FetchPage(ctx, params)
	if err != nil {
		return nil, taskerr.ToolCall("paginated fetch: first page", err)
	}

	style := DetectStyle(first)
	records := append([]map[string]any(nil), first.Records...)
	page := first

	for len(records) < maxRecords {
		next, more, err := advance(ctx, tool, params, style, page, len(records))
		if err != nil {
			return records, taskerr.ToolCall("paginated fetch: continuation page", err)
		}
		if !more {
			break
		}
		records = append(records, next.Records...)
		page = next
		if len(next.Records) == 0 {
			break
		}
	}

	if len(records) > maxRecords {
		records = records[:maxRecords]
	}
	return records, nil
}

func advance(ctx context.Context, tool Tool, baseParams map[string]any, style Style, last Page, fetched int) (Page, bool, error) {
	switch style {
	case StyleCursorNext:
		if last.Cursor == "" {
			return Page{}, false, nil
		}
		params := withParam(baseParams, "cursor", last.Cursor)
		next, err := tool.FetchPage(ctx, params)
		return next, true, err

	case StyleOffsetTotal:
		newOffset := last.Offset + len(last.Records)
		if newOffset >= last.Total {
			return Page{}, false, nil
		}
		params := withParam(baseParams, "offset", newOffset)
		next, err := tool.FetchPage(ctx, params)
		return next, true, err

	case StylePageLimit:
		if last.NextPage <= 0 {
			return Page{}, false, nil
		}
		params := withParam(baseParams, "page", last.NextPage)
		next, err := tool.FetchPage(ctx, params)
		return next, true, err

	case StyleHasMore:
		if !last.HasMore {
			return Page{}, false, nil
		}
		params := withParam(baseParams, "offset", fetched)
		next, err := tool.FetchPage(ctx, params)
		return next, true, err

	default: // StyleUnknown: single page, no continuation
		return Page{}, false, nil
	}
}

func withParam(params map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

// Predicate filters a record during FetchAllMatching.
type Predicate func(record map[string]any) bool

// FetchAllMatching fetches all records and returns only those for which
// predicate returns true.
func FetchAllMatching(ctx context.Context, tool Tool, params map[string]any, predicate Predicate) ([]map[string]any, error) {
	all, err := FetchAll(ctx, tool, params)
	if err != nil {
		return nil, err
	}
	matched := make([]map[string]any, 0, len(all))
	for _, r := range all {
		if predicate(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// GroupBy partitions records by the string value of field key. Records keep
// their input order within each group; the returned map has no group order.
func GroupBy(records []map[string]any, key string) map[string][]map[string]any {
	groups := make(map[string][]map[string]any)
	for _, r := range records {
		groupKey := fmt.Sprintf("%v", r[key])
		groups[groupKey] = append(groups[groupKey], r)
	}
	return groups
}

// SumField sums the numeric value of field key across records. Records
// whose field is missing or non-numeric contribute zero.
func SumField(records []map[string]any, key string) float64 {
	var total float64
	for _, r := range records {
		switch v := r[key].(type) {
		case float64:
			total += v
		case int:
			total += float64(v)
		case int64:
			total += float64(v)
		}
	}
	return total
}
