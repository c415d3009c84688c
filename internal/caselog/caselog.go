// Package caselog implements RLCaseLog + ContextPruner (spec §4.10): a
// bounded, persisted history of past task outcomes, a keyword-overlap
// primer builder, and a quality-based pruning pass run before every primer
// build.
package caselog

import (
	"sort"
	"strings"
	"time"

	"github.com/abhishec/purple-agent/internal/store"
)

const (
	maxEntries  = 200
	maxAge      = 72 * time.Hour
	primerCount = 3

	pruneQualityFloor    = 0.35
	repeatedFailureArity = 3
	repeatedFailureMin   = 0.5
	pruneSafetyCeiling   = 0.7
)

// Outcome is the terminal result of a recorded task.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Entry is one past case.
type Entry struct {
	Summary   string    `json:"summary"`
	Outcome   Outcome   `json:"outcome"`
	Keywords  []string  `json:"keywords"`
	Quality   float64   `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// QualityInputs are the raw signals ComputeQuality combines into one score.
type QualityInputs struct {
	AnswerLength int // characters in the final answer

	// ComplexityWindow is the [min, max] acceptable answer length for this
	// task's complexity.
	ComplexityWindow [2]int

	HasDecisionMarker bool // answer contains a decision/completion marker
	ToolCallCount     int
	PolicyProvided    bool
	PolicyPassed      bool
	IsBracketFormat   bool // exact-match bracket-format answer, see internal/verify
}

// ComputeQuality implements the §4.10 formula:
//
//	quality = 0.35*answer_score + 0.35*tool_score + 0.30*policy_score
func ComputeQuality(in QualityInputs) float64 {
	if in.IsBracketFormat {
		return 1.0
	}

	answerScore := 0.0
	lo, hi := in.ComplexityWindow[0], in.ComplexityWindow[1]
	if hi > 0 && in.AnswerLength >= lo && in.AnswerLength <= hi {
		answerScore = 0.7
		if in.HasDecisionMarker {
			answerScore = 1.0
		}
	} else if in.HasDecisionMarker {
		answerScore = 0.5
	}

	toolScore := 1.0
	switch {
	case in.ToolCallCount <= 1:
		toolScore = 1.0
	case in.ToolCallCount <= 3:
		toolScore = 0.8
	case in.ToolCallCount <= 6:
		toolScore = 0.5
	default:
		toolScore = 0.2
	}

	var policyScore float64
	switch {
	case !in.PolicyProvided:
		policyScore = 0.5
	case in.PolicyPassed:
		policyScore = 1.0
	default:
		policyScore = 0.0
	}

	return 0.35*answerScore + 0.35*toolScore + 0.30*policyScore
}

// Log is the persisted, bounded case history.
type Log struct {
	file    *store.JSONFile
	Entries []Entry `json:"entries"`
}

// NewLog loads a previously persisted case log from path, if any.
func NewLog(path string) (*Log, error) {
	file := store.NewJSONFile(path)
	l := &Log{file: file}
	if err := file.Load(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Tokenize lower-cases and splits text into a deduplicated word set,
// stripping a small set of punctuation — the same notion of "keyword set"
// used both for primer overlap and for repeated-failure detection.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	replacer := strings.NewReplacer(".", " ", ",", " ", "?", " ", "!", " ", ":", " ", ";", " ", "\"", " ", "'", " ")
	fields := strings.Fields(replacer.Replace(lower))
	seen := make(map[string]bool, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		words = append(words, f)
	}
	sort.Strings(words)
	return words
}

// keywordOverlap is the token-set Jaccard overlap between two keyword sets,
// the shared notion behind both the primer's ranking and the
// repeated-failure pruning rule (see DESIGN.md Open Question 1).
func keywordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	intersection := 0
	for _, w := range b {
		if set[w] {
			intersection++
		}
	}
	union := len(set)
	for _, w := range b {
		if !set[w] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Record appends a case entry and persists the log. Pruning runs first, per
// §4.10 ("runs before every primer build"); Record also prunes so the
// 200-entry cap is enforced incrementally rather than only at read time.
func (l *Log) Record(summary string, taskText string, outcome Outcome, quality float64) error {
	l.Prune()

	entry := Entry{
		Summary:   summary,
		Outcome:   outcome,
		Keywords:  Tokenize(taskText),
		Quality:   quality,
		Timestamp: time.Now(),
	}
	l.Entries = append(l.Entries, entry)
	if len(l.Entries) > maxEntries {
		l.Entries = l.Entries[len(l.Entries)-maxEntries:]
	}
	return l.file.Save(l)
}

// Prune drops low-quality failures, stale entries, and repeated-failure
// clusters, with a safety guard against over-pruning.
func (l *Log) Prune() {
	if len(l.Entries) == 0 {
		return
	}
	now := time.Now()
	drop := make([]bool, len(l.Entries))

	for i, e := range l.Entries {
		if e.Quality < pruneQualityFloor && e.Outcome == OutcomeFailure {
			drop[i] = true
		}
		if now.Sub(e.Timestamp) > maxAge {
			drop[i] = true
		}
	}

	failureIdx := make([]int, 0)
	for i, e := range l.Entries {
		if e.Outcome == OutcomeFailure {
			failureIdx = append(failureIdx, i)
		}
	}
	for _, i := range failureIdx {
		similar := 1
		for _, j := range failureIdx {
			if i == j {
				continue
			}
			if keywordOverlap(l.Entries[i].Keywords, l.Entries[j].Keywords) >= repeatedFailureMin {
				similar++
			}
		}
		if similar >= repeatedFailureArity {
			drop[i] = true
		}
	}

	dropCount := 0
	for _, d := range drop {
		if d {
			dropCount++
		}
	}
	if dropCount > int(float64(len(l.Entries))*pruneSafetyCeiling) {
		l.keepHigherQualityHalf()
		return
	}

	kept := l.Entries[:0:0]
	for i, e := range l.Entries {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	l.Entries = kept
}

func (l *Log) keepHigherQualityHalf() {
	sorted := append([]Entry(nil), l.Entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Quality > sorted[j].Quality })
	half := (len(sorted) + 1) / 2
	l.Entries = sorted[:half]
}

// BuildPrimer implements build_rl_primer: tokenise taskText, rank entries by
// keyword overlap, return the top 3 formatted as
// "Past pattern: <summary> → <outcome>".
func (l *Log) BuildPrimer(taskText string) []string {
	l.Prune()
	if len(l.Entries) == 0 {
		return nil
	}

	keywords := Tokenize(taskText)
	type scored struct {
		entry   Entry
		overlap float64
	}
	candidates := make([]scored, 0, len(l.Entries))
	for _, e := range l.Entries {
		candidates = append(candidates, scored{entry: e, overlap: keywordOverlap(keywords, e.Keywords)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].overlap > candidates[j].overlap })

	n := primerCount
	if len(candidates) < n {
		n = len(candidates)
	}
	primer := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if candidates[i].overlap <= 0 {
			break
		}
		primer = append(primer, "Past pattern: "+candidates[i].entry.Summary+" → "+string(candidates[i].entry.Outcome))
	}
	return primer
}
