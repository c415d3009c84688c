package worker

import (
	"context"
	"strings"
	"time"

	"github.com/abhishec/purple-agent/internal/caselog"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/sessionstore"
	"github.com/abhishec/purple-agent/internal/verify"
)

// decisionMarkers are the terms that count as a completed-decision signal
// in a final answer, for the caselog quality formula's HasDecisionMarker
// input.
var decisionMarkers = []string{
	"approved", "denied", "rejected", "completed", "issued",
	"scheduled", "resolved", "escalated", "cancelled",
}

func hasDecisionMarker(answer string) bool {
	lower := strings.ToLower(answer)
	for _, m := range decisionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// complexityWindow scales the acceptable answer-length band to the
// process template's state count: a 3-state read-only template and a
// full 8-state mutating template should not share one fixed band.
func complexityWindow(p primeResult) [2]int {
	states := len(p.template.States)
	if states == 0 {
		states = 3
	}
	return [2]int{40 * states, 400 * states}
}

// scoreOutcome computes the §4.10 quality score and maps it, together with
// whether EXECUTE returned an error, onto a Case Entry outcome.
func (w *Worker) scoreOutcome(answer string, err error, p primeResult, toolCount int) (caselog.Outcome, float64) {
	quality := caselog.ComputeQuality(caselog.QualityInputs{
		AnswerLength:      len(answer),
		ComplexityWindow:  complexityWindow(p),
		HasDecisionMarker: hasDecisionMarker(answer),
		ToolCallCount:     toolCount,
		PolicyProvided:    p.policyProvided,
		PolicyPassed:      p.policyResult.Passed,
		IsBracketFormat:   verify.IsBracketFormat(answer),
	})

	switch {
	case err != nil:
		return caselog.OutcomeFailure, minQuality(quality, 0.2)
	case quality >= 0.7:
		return caselog.OutcomeSuccess, quality
	case quality >= 0.4:
		return caselog.OutcomePartial, quality
	default:
		return caselog.OutcomeFailure, quality
	}
}

func minQuality(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// reflect runs the six REFLECT steps from §4.14. Every step is best-effort:
// failures are swallowed since none of these operations may block the
// response already sent to the caller.
func (w *Worker) reflect(req Request, answer string, p primeResult, outcome caselog.Outcome, quality float64) {
	now := time.Now()
	w.sessions.AppendTurn(req.SessionID, sessionstore.Turn{Role: "user", Content: req.TaskText, Timestamp: now})
	w.sessions.AppendTurn(req.SessionID, sessionstore.Turn{Role: "assistant", Content: answer, Timestamp: now})

	go w.compressSessionHistory(req.SessionID)

	summary := summarize(req.TaskText)
	_ = w.caseLog.Record(summary, req.TaskText, outcome, quality)

	_ = w.bandit.Update(p.processType, p.arm, rewardFor(outcome, quality))

	w.accuracy.Record(outcome == caselog.OutcomeSuccess)

	if quality >= 0.5 {
		_ = w.kb.Record(p.processType, summary, quality, req.TaskText)
	}

	_ = w.entityMem.Observe(req.TaskText)
}

// rewardFor converts an outcome/quality pair into the bandit's [0,1] reward
// signal: quality already lives on that scale, but a failed task is
// floored at a hard penalty regardless of its raw quality number.
func rewardFor(outcome caselog.Outcome, quality float64) float64 {
	if outcome == caselog.OutcomeFailure {
		return minQuality(quality, 0.1)
	}
	return quality
}

// summarize renders a short case-log summary from the raw task text,
// truncating long tasks to keep the persisted log compact.
func summarize(taskText string) string {
	const maxRunes = 160
	trimmed := strings.TrimSpace(taskText)
	runes := []rune(trimmed)
	if len(runes) <= maxRunes {
		return trimmed
	}
	return string(runes[:maxRunes]) + "..."
}

// compressSessionHistory is the async memory-compression step: once a
// session accumulates more than keepTurns turns, summarise the overflow
// with the fast model and compact it away. Abandoned without reporting an
// error if it runs past the REFLECT deadline.
func (w *Worker) compressSessionHistory(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), reflectDeadline)
	defer cancel()

	const keepTurns = 20
	turns, _ := w.sessions.Context(sessionID)
	if len(turns) <= keepTurns {
		return
	}

	var b strings.Builder
	for _, t := range turns[:len(turns)-keepTurns] {
		b.WriteString(t.Role + ": " + t.Content + "\n")
	}

	resp, err := w.fast.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Summarise the following conversation history in two or three sentences, preserving any decisions made."},
		{Role: llm.RoleUser, Content: b.String()},
	})
	if err != nil {
		return
	}
	w.sessions.Compact(sessionID, resp.Content, keepTurns)
}
