package pagination_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/pagination"
)

type cursorTool struct {
	pages [][]map[string]any
}

func (t *cursorTool) FetchPage(_ context.Context, params map[string]any) (pagination.Page, error) {
	idx := 0
	if c, ok := params["cursor"]; ok {
		idx = c.(int)
	}
	if idx >= len(t.pages) {
		return pagination.Page{}, nil
	}
	page := pagination.Page{Records: t.pages[idx]}
	if idx+1 < len(t.pages) {
		page.Cursor = "x" // non-empty signals that more pages follow
	}
	return page, nil
}

func TestDetectStyle_CursorNext(t *testing.T) {
	style := pagination.DetectStyle(pagination.Page{Cursor: "abc"})
	assert.Equal(t, pagination.StyleCursorNext, style)
}

func TestDetectStyle_OffsetTotal(t *testing.T) {
	style := pagination.DetectStyle(pagination.Page{Total: 100})
	assert.Equal(t, pagination.StyleOffsetTotal, style)
}

func TestDetectStyle_Unknown(t *testing.T) {
	style := pagination.DetectStyle(pagination.Page{Records: []map[string]any{{"a": 1}}})
	assert.Equal(t, pagination.StyleUnknown, style)
}

type offsetTotalTool struct {
	all []map[string]any
}

func (t *offsetTotalTool) FetchPage(_ context.Context, params map[string]any) (pagination.Page, error) {
	offset := 0
	if v, ok := params["offset"]; ok {
		offset = v.(int)
	}
	const pageSize = 2
	end := offset + pageSize
	if end > len(t.all) {
		end = len(t.all)
	}
	if offset >= len(t.all) {
		return pagination.Page{Offset: offset, Total: len(t.all)}, nil
	}
	return pagination.Page{
		Records: t.all[offset:end],
		Offset:  offset,
		Total:   len(t.all),
	}, nil
}

func TestFetchAll_OffsetTotalLoopsUntilExhausted(t *testing.T) {
	all := make([]map[string]any, 7)
	for i := range all {
		all[i] = map[string]any{"id": i}
	}
	tool := &offsetTotalTool{all: all}
	records, err := pagination.FetchAll(context.Background(), tool, map[string]any{})
	require.NoError(t, err)
	assert.Len(t, records, 7)
}

func TestGroupBy(t *testing.T) {
	records := []map[string]any{
		{"dept": "finance", "amount": 10.0},
		{"dept": "finance", "amount": 5.0},
		{"dept": "hr", "amount": 2.0},
	}
	groups := pagination.GroupBy(records, "dept")
	assert.Len(t, groups["finance"], 2)
	assert.Len(t, groups["hr"], 1)
}

func TestSumField(t *testing.T) {
	records := []map[string]any{
		{"amount": 10.0}, {"amount": 5}, {"amount": "not a number"},
	}
	assert.Equal(t, 15.0, pagination.SumField(records, "amount"))
}
