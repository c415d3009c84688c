package budget_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhishec/purple-agent/internal/budget"
)

func TestGetModel_MutateAlwaysStrong(t *testing.T) {
	b := budget.New()
	assert.Equal(t, budget.TierStrong, b.GetModel("MUTATE", "say hello"))
}

func TestGetModel_ComputeEscalatesOnAnalyticalKeyword(t *testing.T) {
	b := budget.New()
	assert.Equal(t, budget.TierStrong, b.GetModel("COMPUTE", "please reconcile the ledger"))
	assert.Equal(t, budget.TierFast, b.GetModel("COMPUTE", "add two numbers"))
}

func TestGetModel_TightBudgetForcesFast(t *testing.T) {
	b := budget.New()
	b.Record(strings.Repeat("x", 33_000)) // ratio > 0.8
	assert.Equal(t, budget.TierFast, b.GetModel("MUTATE", "reconcile"))
}

func TestGetModel_ExhaustedReturnsSkip(t *testing.T) {
	b := budget.New()
	b.Record(strings.Repeat("x", 40_000))
	assert.Equal(t, budget.TierSkip, b.GetModel("ASSESS", ""))
}

func TestMaxTokensCap_ScalesWithRemainingBudget(t *testing.T) {
	b := budget.New()
	assert.Equal(t, 4096, b.MaxTokensCap())
	b.Record(strings.Repeat("x", 40_000))
	assert.Equal(t, 256, b.MaxTokensCap())
}

func TestFormatFinalAnswer_AppendsFooter(t *testing.T) {
	out := budget.FormatFinalAnswer("done", budget.AnswerMeta{
		Process: "refund_request", Policy: "passed", Quality: 0.91, Duration: "1.2s",
	})
	assert.Contains(t, out, "Process: refund_request")
	assert.Contains(t, out, "Policy: passed")
	assert.Contains(t, out, "Quality: 0.91")
	assert.Contains(t, out, "Duration: 1.2s")
}
