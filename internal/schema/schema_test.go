package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/schema"
	"github.com/abhishec/purple-agent/internal/taskerr"
)

type fakeCaller struct {
	calls   []map[string]any
	respond func(call int, params map[string]any) (string, error)
}

func (f *fakeCaller) CallTool(_ context.Context, _ string, params map[string]any) (string, error) {
	f.calls = append(f.calls, params)
	return f.respond(len(f.calls)-1, params)
}

func describeColumnsFixed(cols []string) schema.DescribeColumnsFunc {
	return func(ctx context.Context) ([]string, error) { return cols, nil }
}

func TestCall_AliasTableCorrectsKnownVariant(t *testing.T) {
	caller := &fakeCaller{
		respond: func(call int, params map[string]any) (string, error) {
			if call == 0 {
				return "", errors.New("no such column: cust_id")
			}
			return "ok", nil
		},
	}
	adapter := schema.NewAdapter()
	result, err := adapter.Call(context.Background(), caller,
		describeColumnsFixed([]string{"customer_id", "amount", "status"}),
		"get_invoice", map[string]any{"cust_id": "c-1"}, "cust_id")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	require.Len(t, caller.calls, 2)
	assert.Equal(t, "c-1", caller.calls[1]["customer_id"])
}

func TestCall_SessionCacheShortCircuitsOnSecondCall(t *testing.T) {
	caller := &fakeCaller{
		respond: func(call int, params map[string]any) (string, error) {
			if _, bad := params["cust_id"]; bad {
				return "", errors.New("unknown column cust_id")
			}
			return "ok", nil
		},
	}
	adapter := schema.NewAdapter()
	describe := describeColumnsFixed([]string{"customer_id"})

	_, err := adapter.Call(context.Background(), caller, describe,
		"get_invoice", map[string]any{"cust_id": "c-1"}, "cust_id")
	require.NoError(t, err)

	_, err = adapter.Call(context.Background(), caller, describe,
		"get_invoice", map[string]any{"cust_id": "c-2"}, "cust_id")
	require.NoError(t, err)

	// Second task never sent the bad column name to the tool server.
	assert.Equal(t, "c-2", caller.calls[2]["customer_id"])
}

func TestCall_UnrecoverableAfterOneFailedRetry(t *testing.T) {
	caller := &fakeCaller{
		respond: func(call int, params map[string]any) (string, error) {
			return "", errors.New("no such column: totally_unknown_field_xyz")
		},
	}
	adapter := schema.NewAdapter()
	_, err := adapter.Call(context.Background(), caller,
		describeColumnsFixed([]string{"customer_id", "amount", "status"}),
		"get_invoice", map[string]any{"totally_unknown_field_xyz": "v"}, "totally_unknown_field_xyz")

	require.Error(t, err)
	assert.True(t, taskerr.Is(err, taskerr.KindSchemaDriftUnrecoverable))
}

func TestCall_EmptyResultAlsoTriggersCorrection(t *testing.T) {
	caller := &fakeCaller{
		respond: func(call int, params map[string]any) (string, error) {
			if call == 0 {
				return "", nil
			}
			return "found", nil
		},
	}
	adapter := schema.NewAdapter()
	result, err := adapter.Call(context.Background(), caller,
		describeColumnsFixed([]string{"customer_id"}),
		"get_invoice", map[string]any{"cust_id": "cust_id"}, "cust_id")

	require.NoError(t, err)
	assert.Equal(t, "found", result)
}

func TestCall_NonSchemaErrorPassesThroughUnchanged(t *testing.T) {
	caller := &fakeCaller{
		respond: func(call int, params map[string]any) (string, error) {
			return "", errors.New("upstream timeout")
		},
	}
	adapter := schema.NewAdapter()
	_, err := adapter.Call(context.Background(), caller,
		describeColumnsFixed([]string{"customer_id"}),
		"get_invoice", map[string]any{"cust_id": "c-1"}, "cust_id")

	require.Error(t, err)
	assert.False(t, taskerr.Is(err, taskerr.KindSchemaDriftUnrecoverable))
	assert.Contains(t, err.Error(), "upstream timeout")
}
