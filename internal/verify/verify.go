// Package verify implements ComputeVerifier, SelfReflection, and the two
// Mixture-of-Agents synthesis passes (spec §4.12), plus bracket-format
// detection (§4.13).
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/abhishec/purple-agent/internal/llm"
)

const consensusThreshold = 0.70

var numberPattern = regexp.MustCompile(`-?\$?\d[\d,]*(?:\.\d+)?`)

// Verifier bundles the fast/strong model tiers every pass in this package
// needs.
type Verifier struct {
	fast   llm.Provider
	strong llm.Provider
}

// New returns a Verifier over the two model tiers.
func New(fast, strong llm.Provider) *Verifier {
	return &Verifier{fast: fast, strong: strong}
}

// ComputeAudit runs a fast-LLM arithmetic audit over answer, called after
// any COMPUTE state. Returns true when no error was detected.
func (v *Verifier) ComputeAudit(ctx context.Context, answer string) (bool, error) {
	resp, err := v.fast.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Audit the arithmetic in the following answer. Reply with exactly \"OK\" if every calculation is correct, or \"ERROR: <reason>\" otherwise."},
		{Role: llm.RoleUser, Content: answer},
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.TrimSpace(resp.Content), "OK"), nil
}

// CorrectCompute runs the single allowed strong-LLM correction pass after
// ComputeAudit detects an error. Never called more than once per COMPUTE
// state — the caller (internal/fsm strategy) enforces that.
func (v *Verifier) CorrectCompute(ctx context.Context, answer, auditFinding string) (string, error) {
	resp, err := v.strong.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "The following answer contains an arithmetic error. Correct it and return the full corrected answer."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Answer:\n%s\n\nAudit finding: %s", answer, auditFinding)},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

const reflectionThreshold = 0.65

// ReflectionScore is the 0-1 quality assessment SelfReflection produces
// before deciding whether to run an improvement pass.
type ReflectionScore struct {
	Completeness     float64
	PolicyCompliance float64
	ToolCoverage     float64
}

// Overall is the unweighted mean of the three reflection dimensions.
func (s ReflectionScore) Overall() float64 {
	return (s.Completeness + s.PolicyCompliance + s.ToolCoverage) / 3
}

// SelfReflect scores answer and, if it scores below reflectionThreshold and
// is not bracket-format, runs one improvement pass. Returns the (possibly
// unchanged) answer and whether an improvement pass ran.
func (v *Verifier) SelfReflect(ctx context.Context, answer string) (string, bool, error) {
	if IsBracketFormat(answer) {
		return answer, false, nil
	}

	score, err := v.scoreAnswer(ctx, answer)
	if err != nil {
		return answer, false, err
	}
	if score.Overall() >= reflectionThreshold {
		return answer, false, nil
	}

	resp, err := v.fast.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Improve the completeness, policy compliance, and tool-result coverage of the following answer. Return only the improved answer."},
		{Role: llm.RoleUser, Content: answer},
	})
	if err != nil {
		return answer, false, err
	}
	return resp.Content, true, nil
}

func (v *Verifier) scoreAnswer(ctx context.Context, answer string) (ReflectionScore, error) {
	resp, err := v.fast.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: `Score the following answer on three dimensions, each 0.0-1.0: completeness, policy_compliance, tool_coverage. ` +
			`Respond as JSON: {"completeness": 0.0, "policy_compliance": 0.0, "tool_coverage": 0.0}.`},
		{Role: llm.RoleUser, Content: answer},
	})
	if err != nil {
		return ReflectionScore{}, err
	}
	return parseReflectionScore(resp.Content), nil
}

// NumericMoA implements the tool_count > 0 consensus pass: two fast-LLM
// calls at different temperatures ("verify", "challenge"); on Jaccard
// consensus ≥ 0.70 nothing is appended (the execution answer stands); on
// divergence a strong-LLM synthesis is produced, and an addendum is
// returned only if its headline number differs from the execution answer's.
func (v *Verifier) NumericMoA(ctx context.Context, executionAnswer string, toolCount int) (string, error) {
	if toolCount <= 0 {
		return "", nil
	}

	verifyTemp := float32(0.2)
	challengeTemp := float32(0.9)
	verifyResp, err := v.fast.Call(ctx, moaPrompt(executionAnswer, "Re-derive the key number independently."), llm.CallOptions{Temperature: &verifyTemp})
	if err != nil {
		return "", err
	}
	challengeResp, err := v.fast.Call(ctx, moaPrompt(executionAnswer, "Challenge the key number; recompute it from scratch, assuming the original may be wrong."), llm.CallOptions{Temperature: &challengeTemp})
	if err != nil {
		return "", err
	}

	if jaccard(wordSet(verifyResp.Content), wordSet(challengeResp.Content)) >= consensusThreshold {
		return "", nil
	}

	synthesis, err := v.synthesize(ctx, executionAnswer, verifyResp.Content, challengeResp.Content)
	if err != nil {
		return "", err
	}
	if sameNumber(synthesis, executionAnswer) {
		return "", nil
	}
	return synthesis, nil
}

// PureReasoningMoA implements the tool_count == 0 consensus pass: two
// fast-LLM calls at different top_p values; on consensus the longer answer
// is used, else a strong-LLM synthesis.
func (v *Verifier) PureReasoningMoA(ctx context.Context, executionAnswer string) (string, error) {
	topP1 := float32(0.85)
	topP2 := float32(0.99)
	resp1, err := v.fast.Call(ctx, moaPrompt(executionAnswer, "Restate and refine the answer."), llm.CallOptions{TopP: &topP1})
	if err != nil {
		return "", err
	}
	resp2, err := v.fast.Call(ctx, moaPrompt(executionAnswer, "Restate and refine the answer."), llm.CallOptions{TopP: &topP2})
	if err != nil {
		return "", err
	}

	if jaccard(wordSet(resp1.Content), wordSet(resp2.Content)) >= consensusThreshold {
		if len(resp2.Content) > len(resp1.Content) {
			return resp2.Content, nil
		}
		return resp1.Content, nil
	}

	return v.synthesize(ctx, executionAnswer, resp1.Content, resp2.Content)
}

func moaPrompt(executionAnswer, instruction string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: instruction},
		{Role: llm.RoleUser, Content: executionAnswer},
	}
}

func (v *Verifier) synthesize(ctx context.Context, executionAnswer, a, b string) (string, error) {
	resp, err := v.strong.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Two independent reviewers disagreed on the following answer. Synthesise one final, correct answer."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Original answer:\n%s\n\nReviewer A:\n%s\n\nReviewer B:\n%s", executionAnswer, a, b)},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// sameNumber reports whether a and b's first extracted number match,
// treating no-number-found in either as a mismatch (so the addendum is
// still surfaced rather than silently dropped).
func sameNumber(a, b string) bool {
	na, ok1 := extractNumber(a)
	nb, ok2 := extractNumber(b)
	return ok1 && ok2 && na == nb
}

func extractNumber(text string) (string, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimPrefix(m, "$"), ",", ""), true
}

func parseReflectionScore(raw string) ReflectionScore {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return ReflectionScore{}
	}
	var payload struct {
		Completeness     float64 `json:"completeness"`
		PolicyCompliance float64 `json:"policy_compliance"`
		ToolCoverage     float64 `json:"tool_coverage"`
	}
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return ReflectionScore{}
	}
	return ReflectionScore{
		Completeness:     payload.Completeness,
		PolicyCompliance: payload.PolicyCompliance,
		ToolCoverage:     payload.ToolCoverage,
	}
}

func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
