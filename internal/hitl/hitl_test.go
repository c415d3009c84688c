package hitl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhishec/purple-agent/internal/hitl"
)

func TestClassify_ComputePrefixTakesPriorityOverReadLikeNames(t *testing.T) {
	// Regression for the documented priority bug: estimate_/predict_/etc.
	// must always classify as compute, never fall through to read.
	assert.Equal(t, hitl.ClassCompute, hitl.Classify("estimate_headcount"))
	assert.Equal(t, hitl.ClassCompute, hitl.Classify("calculate_total"))
	assert.Equal(t, hitl.ClassCompute, hitl.Classify("compute_variance"))
	assert.Equal(t, hitl.ClassCompute, hitl.Classify("predict_churn"))
}

func TestClassify_ReadPrefixes(t *testing.T) {
	for _, name := range []string{
		"get_account", "list_invoices", "find_customer", "search_orders",
		"describe_table", "fetch_ledger", "read_policy", "show_balance", "query_logs",
	} {
		assert.Equal(t, hitl.ClassRead, hitl.Classify(name), name)
	}
}

func TestClassify_OtherwiseMutate(t *testing.T) {
	assert.Equal(t, hitl.ClassMutate, hitl.Classify("update_account"))
	assert.Equal(t, hitl.ClassMutate, hitl.Classify("create_invoice"))
	assert.Equal(t, hitl.ClassMutate, hitl.Classify("approve_request"))
	assert.Equal(t, hitl.ClassMutate, hitl.Classify("revoke_access"))
}

type fakeTool string

func (f fakeTool) ToolName() string { return string(f) }

func TestFilterTools_RemovesMutateInReadOnlyStates(t *testing.T) {
	all := []fakeTool{"get_account", "update_account", "calculate_total"}

	for _, state := range []string{"ASSESS", "APPROVAL_GATE", "POLICY_CHECK", "COMPUTE"} {
		result := hitl.FilterTools(all, state)
		for _, tool := range result.Visible {
			assert.NotEqual(t, hitl.ClassMutate, hitl.Classify(tool.ToolName()), "state=%s", state)
		}
		assert.NotEmpty(t, result.Banner, "state=%s", state)
	}
}

func TestFilterTools_NoFilteringOutsideReadOnlyStates(t *testing.T) {
	all := []fakeTool{"get_account", "update_account"}
	result := hitl.FilterTools(all, "MUTATE")
	assert.Len(t, result.Visible, 2)
	assert.Empty(t, result.Banner)
}
