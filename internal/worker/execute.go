package worker

import (
	"context"
	"fmt"

	"github.com/abhishec/purple-agent/internal/bandit"
	"github.com/abhishec/purple-agent/internal/budget"
	"github.com/abhishec/purple-agent/internal/strategy"
)

// execute runs the EXECUTE phase: the bandit-picked strategy over the
// layered tool-call stack — FSMStrategy audits and, if needed, corrects
// each COMPUTE state's answer in place before MUTATE becomes reachable —
// then the post-execution passes in the order fixed by §4.14 — mutation
// log, numeric/pure-reasoning MoA, approval brief, output validation,
// self-reflection.
func (w *Worker) execute(ctx context.Context, req Request, p primeResult) (string, int, error) {
	stack := newToolStack(p.toolClient)
	tokenBudget := budget.New()

	exec, saveCheckpoint := w.buildStrategy(req, p, stack)

	answer, err := exec.Execute(ctx, p.systemContext, p.tools, tokenBudget, nil)
	toolCount := stack.CallCount()
	if saveCheckpoint != nil {
		saveCheckpoint()
	}
	if err != nil {
		return answer, toolCount, err
	}

	if logText := stack.MutationLog().Render(); logText != "" {
		answer += "\n\n" + logText
	}

	if toolCount > 0 {
		if addendum, moaErr := w.verifier.NumericMoA(ctx, answer, toolCount); moaErr == nil && addendum != "" {
			answer += "\n\n## Independent verification\n" + addendum
		}
	} else if refined, moaErr := w.verifier.PureReasoningMoA(ctx, answer); moaErr == nil && refined != "" {
		answer = refined
	}

	if p.policyResult.RequiresApproval {
		answer = fmt.Sprintf("## Approval Required\nEscalation level: %s\n\n%s", p.policyResult.EscalationLevel, answer)
	}

	answer = validateOutput(answer)

	if improved, changed, reflectErr := w.verifier.SelfReflect(ctx, answer); reflectErr == nil && changed {
		answer = improved
	}

	return answer, toolCount, nil
}

// buildStrategy maps the bandit-selected arm onto its strategy.ExecStrategy
// implementation. Only FSMStrategy carries a resumable checkpoint; the
// returned closure, when non-nil, persists it once Execute returns.
func (w *Worker) buildStrategy(req Request, p primeResult, stack *toolStack) (strategy.ExecStrategy, func()) {
	switch p.arm {
	case bandit.ArmMoA:
		return &strategy.MoAStrategy{TaskText: req.TaskText, Fast: w.fast, Strong: w.strong, ToolClient: stack}, nil

	case bandit.ArmFivePhase:
		return &strategy.FivePhaseStrategy{TaskText: req.TaskText, Fast: w.fast, Strong: w.strong, ToolClient: stack}, nil

	default:
		fsmStrategy := &strategy.FSMStrategy{
			Template:     p.template,
			TaskText:     req.TaskText,
			Checkpoint:   p.checkpoint,
			PolicyPassed: p.policyResult.Passed,
			Fast:         w.fast,
			Strong:       w.strong,
			ToolClient:   stack,
			Auditor:      w.verifier,
		}
		save := func() { w.sessions.SaveCheckpoint(req.SessionID, fsmStrategy.LastCheckpoint()) }
		return fsmStrategy, save
	}
}

// validateOutput is the minimal output-validation pass: an execution that
// produced no usable text is surfaced as a soft failure rather than an
// empty answer reaching the caller.
func validateOutput(answer string) string {
	if answer == "" {
		return "(no answer was produced; the task may require information not available through the configured tools)"
	}
	return answer
}
