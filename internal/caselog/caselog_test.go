package caselog_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/caselog"
)

func newLog(t *testing.T) *caselog.Log {
	t.Helper()
	l, err := caselog.NewLog(filepath.Join(t.TempDir(), "case_log.json"))
	require.NoError(t, err)
	return l
}

func TestComputeQuality_BracketFormatAlwaysOne(t *testing.T) {
	q := caselog.ComputeQuality(caselog.QualityInputs{IsBracketFormat: true, ToolCallCount: 9, PolicyProvided: true, PolicyPassed: false})
	assert.Equal(t, 1.0, q)
}

func TestComputeQuality_RewardsFewerToolCallsAndPassingPolicy(t *testing.T) {
	efficient := caselog.ComputeQuality(caselog.QualityInputs{
		AnswerLength: 50, ComplexityWindow: [2]int{10, 200}, HasDecisionMarker: true,
		ToolCallCount: 1, PolicyProvided: true, PolicyPassed: true,
	})
	wasteful := caselog.ComputeQuality(caselog.QualityInputs{
		AnswerLength: 50, ComplexityWindow: [2]int{10, 200}, HasDecisionMarker: true,
		ToolCallCount: 9, PolicyProvided: true, PolicyPassed: false,
	})
	assert.Greater(t, efficient, wasteful)
}

func TestComputeQuality_NoPolicyProvidedScoresHalf(t *testing.T) {
	q := caselog.ComputeQuality(caselog.QualityInputs{
		AnswerLength: 50, ComplexityWindow: [2]int{10, 200}, HasDecisionMarker: true,
		ToolCallCount: 1, PolicyProvided: false,
	})
	assert.InDelta(t, 0.35+0.35+0.30*0.5, q, 1e-9)
}

func TestBuildPrimer_RanksByKeywordOverlapTop3(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.Record("refunded a duplicate charge", "refund the customer for a duplicate charge on invoice 1021", caselog.OutcomeSuccess, 0.9))
	require.NoError(t, l.Record("approved an expense report", "approve the expense report for travel costs", caselog.OutcomeSuccess, 0.8))
	require.NoError(t, l.Record("reconciled an invoice", "reconcile invoice 1021 against payments received", caselog.OutcomeSuccess, 0.85))

	primer := l.BuildPrimer("please refund the customer for invoice 1021")
	require.NotEmpty(t, primer)
	assert.Contains(t, primer[0], "Past pattern:")
	assert.LessOrEqual(t, len(primer), 3)
}

func TestBuildPrimer_EmptyLogReturnsNil(t *testing.T) {
	l := newLog(t)
	assert.Nil(t, l.BuildPrimer("anything"))
}

func TestPrune_DropsLowQualityFailures(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.Record("a failed refund attempt", "refund the wrong account", caselog.OutcomeFailure, 0.1))
	require.NoError(t, l.Record("a solid reconciliation", "reconcile the march invoices", caselog.OutcomeSuccess, 0.9))

	l.Prune()
	require.Len(t, l.Entries, 1)
	assert.Equal(t, caselog.OutcomeSuccess, l.Entries[0].Outcome)
}

func TestPrune_DropsStaleEntries(t *testing.T) {
	l := newLog(t)
	l.Entries = append(l.Entries, caselog.Entry{
		Summary: "stale entry", Outcome: caselog.OutcomeSuccess, Quality: 0.9,
		Keywords: caselog.Tokenize("an old task"), Timestamp: time.Now().Add(-100 * time.Hour),
	})
	l.Entries = append(l.Entries, caselog.Entry{
		Summary: "fresh entry", Outcome: caselog.OutcomeSuccess, Quality: 0.9,
		Keywords: caselog.Tokenize("a recent task"), Timestamp: time.Now(),
	})
	l.Prune()
	require.Len(t, l.Entries, 1)
	assert.Equal(t, "fresh entry", l.Entries[0].Summary)
}

func TestPrune_RepeatedFailureClusterDropped(t *testing.T) {
	l := newLog(t)
	for i := 0; i < 3; i++ {
		l.Entries = append(l.Entries, caselog.Entry{
			Summary: "failed invoice reconciliation", Outcome: caselog.OutcomeFailure, Quality: 0.5,
			Keywords: caselog.Tokenize("reconcile invoice payments ledger march"), Timestamp: time.Now(),
		})
	}
	l.Entries = append(l.Entries, caselog.Entry{
		Summary: "an unrelated success", Outcome: caselog.OutcomeSuccess, Quality: 0.9,
		Keywords: caselog.Tokenize("grant access to the new employee"), Timestamp: time.Now(),
	})
	l.Entries = append(l.Entries, caselog.Entry{
		Summary: "another unrelated success", Outcome: caselog.OutcomeSuccess, Quality: 0.8,
		Keywords: caselog.Tokenize("approve the quarterly travel budget"), Timestamp: time.Now(),
	})

	l.Prune()
	require.Len(t, l.Entries, 2)
	assert.Equal(t, caselog.OutcomeSuccess, l.Entries[0].Outcome)
	assert.Equal(t, caselog.OutcomeSuccess, l.Entries[1].Outcome)
}

func TestPrune_SafetyGuardKeepsHigherQualityHalfWhenOverPruning(t *testing.T) {
	l := newLog(t)
	for i := 0; i < 10; i++ {
		quality := 0.1
		if i%2 == 0 {
			quality = 0.9
		}
		l.Entries = append(l.Entries, caselog.Entry{
			Summary: "entry", Outcome: caselog.OutcomeFailure, Quality: quality,
			Keywords: caselog.Tokenize("task entry number"), Timestamp: time.Now(),
		})
	}
	l.Prune()
	assert.Len(t, l.Entries, 5)
	for _, e := range l.Entries {
		assert.Equal(t, 0.9, e.Quality)
	}
}

func TestLog_RecordEnforces200EntryCap(t *testing.T) {
	l := newLog(t)
	for i := 0; i < 210; i++ {
		require.NoError(t, l.Record("entry", "a unique successful task outcome", caselog.OutcomeSuccess, 0.9))
	}
	assert.LessOrEqual(t, len(l.Entries), 200)
}
