// Package bandit implements StrategyBandit (spec §4.11): a UCB1 multi-armed
// bandit selecting among the fsm/five_phase/moa execution strategies, with
// one independent set of arms per process type.
package bandit

import (
	"math"

	"github.com/abhishec/purple-agent/internal/store"
)

// Arm is one of the three execution strategies the bandit chooses between.
type Arm string

const (
	ArmFSM       Arm = "fsm"
	ArmFivePhase Arm = "five_phase"
	ArmMoA       Arm = "moa"
)

var arms = []Arm{ArmFSM, ArmFivePhase, ArmMoA}

type armStats struct {
	Q float64 `json:"q"`
	N int     `json:"n"`
}

// Bandit holds, per process type, the running UCB1 statistics for each arm.
type Bandit struct {
	file  *store.JSONFile
	Stats map[string]map[Arm]*armStats `json:"stats"`
}

// New loads any previously persisted bandit state from path.
func New(path string) (*Bandit, error) {
	file := store.NewJSONFile(path)
	b := &Bandit{file: file, Stats: make(map[string]map[Arm]*armStats)}
	if err := file.Load(b); err != nil {
		return nil, err
	}
	if b.Stats == nil {
		b.Stats = make(map[string]map[Arm]*armStats)
	}
	return b, nil
}

func (b *Bandit) statsFor(processType string) map[Arm]*armStats {
	s, ok := b.Stats[processType]
	if !ok {
		s = map[Arm]*armStats{
			ArmFSM:       {},
			ArmFivePhase: {},
			ArmMoA:       {},
		}
		b.Stats[processType] = s
	}
	return s
}

// Select runs UCB1 over the three arms for processType. The very first task
// of a process type (every arm at n==0) defaults to ArmFSM rather than an
// arbitrary tie-break among +Inf scores.
func (b *Bandit) Select(processType string) Arm {
	stats := b.statsFor(processType)

	total := 0
	for _, a := range arms {
		total += stats[a].N
	}
	if total == 0 {
		return ArmFSM
	}

	var best Arm
	bestScore := math.Inf(-1)
	for _, a := range arms {
		s := stats[a]
		var score float64
		if s.N == 0 {
			score = math.Inf(1)
		} else {
			score = s.Q + math.Sqrt(2)*math.Sqrt(math.Log(float64(total))/float64(s.N))
		}
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}

// Update applies the incremental-mean rule to the chosen arm after a task
// completes, and persists the new state.
func (b *Bandit) Update(processType string, arm Arm, reward float64) error {
	stats := b.statsFor(processType)
	s, ok := stats[arm]
	if !ok {
		s = &armStats{}
		stats[arm] = s
	}
	s.N++
	s.Q = s.Q + (reward-s.Q)/float64(s.N)
	return b.file.Save(b)
}

// Counts returns the current per-arm selection counts for processType, used
// by convergence diagnostics and tests.
func (b *Bandit) Counts(processType string) map[Arm]int {
	stats := b.statsFor(processType)
	out := make(map[Arm]int, len(arms))
	for _, a := range arms {
		out[a] = stats[a].N
	}
	return out
}

// QValue returns the current running mean reward for arm under processType.
func (b *Bandit) QValue(processType string, arm Arm) float64 {
	return b.statsFor(processType)[arm].Q
}
