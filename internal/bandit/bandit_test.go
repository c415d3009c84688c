package bandit_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/bandit"
)

func newBandit(t *testing.T) *bandit.Bandit {
	t.Helper()
	b, err := bandit.New(filepath.Join(t.TempDir(), "bandit_state.json"))
	require.NoError(t, err)
	return b
}

func TestSelect_FirstTaskOfProcessTypeDefaultsToFSM(t *testing.T) {
	b := newBandit(t)
	assert.Equal(t, bandit.ArmFSM, b.Select("refund_request"))
}

func TestSelect_ForcesExplorationOfUntriedArms(t *testing.T) {
	b := newBandit(t)
	require.NoError(t, b.Update("refund_request", bandit.ArmFSM, 0.9))

	// five_phase and moa have n==0 so their UCB score is +Inf; fsm has a
	// finite score even with a high reward.
	next := b.Select("refund_request")
	assert.NotEqual(t, bandit.ArmFSM, next)
}

func TestUpdate_IncrementalMeanConverges(t *testing.T) {
	b := newBandit(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Update("refund_request", bandit.ArmFSM, 0.8))
	}
	assert.InDelta(t, 0.8, b.QValue("refund_request", bandit.ArmFSM), 1e-9)
	assert.Equal(t, 5, b.Counts("refund_request")[bandit.ArmFSM])
}

func TestSelect_ConvergesToBestArmAfterExploration(t *testing.T) {
	b := newBandit(t)
	// Exhaust forced exploration of all three arms once.
	require.NoError(t, b.Update("invoice_reconciliation", bandit.ArmFSM, 0.8))
	require.NoError(t, b.Update("invoice_reconciliation", bandit.ArmFivePhase, 0.6))
	require.NoError(t, b.Update("invoice_reconciliation", bandit.ArmMoA, 0.4))

	// Reinforce fsm heavily so its exploitation term dominates the
	// exploration bonus for the other, lower-reward arms.
	for i := 0; i < 30; i++ {
		arm := b.Select("invoice_reconciliation")
		reward := 0.8
		switch arm {
		case bandit.ArmFivePhase:
			reward = 0.6
		case bandit.ArmMoA:
			reward = 0.4
		}
		require.NoError(t, b.Update("invoice_reconciliation", arm, reward))
	}

	counts := b.Counts("invoice_reconciliation")
	assert.Greater(t, counts[bandit.ArmFSM], counts[bandit.ArmFivePhase])
	assert.Greater(t, counts[bandit.ArmFivePhase], counts[bandit.ArmMoA])
}

func TestBandit_StatePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bandit_state.json")
	b1, err := bandit.New(path)
	require.NoError(t, err)
	require.NoError(t, b1.Update("refund_request", bandit.ArmFSM, 0.9))

	b2, err := bandit.New(path)
	require.NoError(t, err)
	assert.Equal(t, 1, b2.Counts("refund_request")[bandit.ArmFSM])
	assert.InDelta(t, 0.9, b2.QValue("refund_request", bandit.ArmFSM), 1e-9)
}
