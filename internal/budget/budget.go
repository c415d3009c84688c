// Package budget implements TokenBudget (spec §4.2): a per-task character
// budget that drives model-tier selection and the answer footer.
package budget

import (
	"fmt"
	"strings"
	"sync"
)

// Tier mirrors llm.Tier's two values plus the "skip" sentinel returned once
// the budget is exhausted. Duplicated here (rather than importing llm) so
// budget stays a leaf package with no LLM dependency — it only ever
// recommends a tier name.
type Tier string

const (
	TierFast   Tier = "fast"
	TierStrong Tier = "strong"
	TierSkip   Tier = "skip"
)

// charBudget is the 40,000-char (~10K token) per-task ceiling from §4.2.
const charBudget = 40_000

// analyticalKeywords triggers the strong tier during COMPUTE.
var analyticalKeywords = []string{
	"reconcile", "root cause", "diagnose", "forecast",
	"synthesise", "cross-reference", "correlate", "investigate",
}

// Budget tracks character consumption for a single task. Safe for
// concurrent use since a strategy's tool-call goroutines may record
// concurrently.
type Budget struct {
	mu            sync.Mutex
	charsConsumed int
}

// New returns a fresh per-task Budget.
func New() *Budget { return &Budget{} }

// Record adds len(text) to the running character count.
func (b *Budget) Record(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.charsConsumed += len(text)
}

// UsageRatio returns the fraction of charBudget consumed so far.
func (b *Budget) UsageRatio() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.charsConsumed) / float64(charBudget)
}

// GetModel returns the tier to use for fsmState given taskText, per the
// precedence in §4.2: MUTATE always strong; tight budget always forces
// fast; COMPUTE escalates to strong only on an analytical-keyword hit;
// everything else is fast. Exhausted budget returns TierSkip regardless
// of state.
func (b *Budget) GetModel(fsmState string, taskText string) Tier {
	ratio := b.UsageRatio()
	if ratio >= 1.0 {
		return TierSkip
	}
	if ratio > 0.8 {
		return TierFast
	}
	if fsmState == "MUTATE" {
		return TierStrong
	}
	if fsmState == "COMPUTE" && containsAnalyticalKeyword(taskText) {
		return TierStrong
	}
	return TierFast
}

func containsAnalyticalKeyword(taskText string) bool {
	lower := strings.ToLower(taskText)
	for _, kw := range analyticalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MaxTokensCap scales inversely with remaining budget: 256 tokens when the
// budget is nearly exhausted, up to 4096 when it is fresh.
func (b *Budget) MaxTokensCap() int {
	ratio := b.UsageRatio()
	remaining := 1.0 - ratio
	if remaining < 0 {
		remaining = 0
	}
	tokens := int(256 + remaining*(4096-256))
	if tokens < 256 {
		tokens = 256
	}
	if tokens > 4096 {
		tokens = 4096
	}
	return tokens
}

// AnswerMeta is the set of fields rendered into the final-answer footer.
type AnswerMeta struct {
	Process  string
	Policy   string
	Quality  float64
	Duration string
}

// FormatFinalAnswer appends a short metadata footer to answer.
func FormatFinalAnswer(answer string, meta AnswerMeta) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(answer, "\n"))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "Process: %s\n", meta.Process)
	fmt.Fprintf(&b, "Policy: %s\n", meta.Policy)
	fmt.Fprintf(&b, "Quality: %.2f\n", meta.Quality)
	fmt.Fprintf(&b, "Duration: %s\n", meta.Duration)
	return b.String()
}
