package mutation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/mutation"
)

type fakeCaller struct {
	err error
}

func (f fakeCaller) CallTool(_ context.Context, _ string, _ map[string]any) (string, error) {
	return "", f.err
}

func TestVerify_TableEntrySucceeds(t *testing.T) {
	log := mutation.NewLog()
	entry, ok := log.Verify(context.Background(), fakeCaller{}, "issue_refund", map[string]any{"id": "r-1"})
	require.True(t, ok)
	assert.Equal(t, mutation.StatusVerified, entry.Status)
	assert.Equal(t, "get_refund_status", entry.ReadCall)
}

func TestVerify_PrefixHeuristicDerivesReadTool(t *testing.T) {
	log := mutation.NewLog()
	entry, ok := log.Verify(context.Background(), fakeCaller{}, "update_customer", map[string]any{"id": "c-1"})
	require.True(t, ok)
	assert.Equal(t, "get_customer", entry.ReadCall)
}

func TestVerify_FailedReadRecordsButNeverErrors(t *testing.T) {
	log := mutation.NewLog()
	entry, ok := log.Verify(context.Background(), fakeCaller{err: errors.New("boom")}, "create_ticket", map[string]any{"id": "t-1"})
	require.True(t, ok)
	assert.Equal(t, mutation.StatusFailed, entry.Status)
}

func TestVerify_NonMutateToolIsSkipped(t *testing.T) {
	log := mutation.NewLog()
	_, ok := log.Verify(context.Background(), fakeCaller{}, "get_customer", map[string]any{"id": "c-1"})
	assert.False(t, ok)
	assert.Empty(t, log.Entries())
}

func TestVerify_NoPrimaryKeyIsUnverifiable(t *testing.T) {
	log := mutation.NewLog()
	entry, ok := log.Verify(context.Background(), fakeCaller{}, "update_customer", map[string]any{"note": "x"})
	require.True(t, ok)
	assert.Equal(t, mutation.StatusUnverifiable, entry.Status)
}

func TestRender_IncludesHeaderAndEntries(t *testing.T) {
	log := mutation.NewLog()
	log.Verify(context.Background(), fakeCaller{}, "issue_refund", map[string]any{"id": "r-1"})
	out := log.Render()
	assert.Contains(t, out, "## Mutation Verification Log")
	assert.Contains(t, out, "issue_refund")
}
