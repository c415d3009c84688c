package fsm

import (
	"context"
	"regexp"
	"strings"

	"github.com/abhishec/purple-agent/internal/budget"
)

// actionVerbs and readPatterns drive the read-only shortcircuit: a task
// mentioning none of the former but at least one of the latter collapses
// to DECOMPOSE → ASSESS → COMPLETE.
var actionVerbs = []string{
	"approve", "reject", "cancel", "update", "create", "delete",
	"revoke", "refund", "reconcile", "issue", "send",
}

var readPatterns = []string{
	"what is", "show me", "list", "find", "report", "summarise",
}

// IsReadOnly reports whether taskText contains a read pattern but no
// action verb.
func IsReadOnly(taskText string) bool {
	lower := strings.ToLower(taskText)
	for _, verb := range actionVerbs {
		if containsWord(lower, verb) {
			return false
		}
	}
	for _, pattern := range readPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(text)
}

// Checkpoint is the persisted resume point for a session with an
// in-progress FSM run on a matching process type.
type Checkpoint struct {
	ProcessType    string `json:"process_type"`
	StateIndex     int    `json:"state_index"`
	GatesCompleted int    `json:"gates_completed"`
}

// StepContext is everything a strategy needs to execute one FSM state.
type StepContext struct {
	State       State
	Instruction string
	Tools       []string
	Tier        budget.Tier
}

// StepOutcome is what a strategy reports after executing one state.
type StepOutcome struct {
	Action Action // ActionContinue, ActionSuccess, ActionFailure
	Answer string
}

// Strategy is the execution backend FSMRunner drives — fsm/five_phase/moa
// all implement this from the FSMRunner's point of view.
type Strategy interface {
	ExecuteState(ctx context.Context, step StepContext) (StepOutcome, error)
}

// ToolFilter narrows the visible tool set for a given state, implemented by
// internal/hitl.FilterTools in production.
type ToolFilter func(state State) []string

// ModelTier resolves the tier for a given state, implemented by
// internal/budget.Budget.GetModel in production.
type ModelTier func(state State, taskText string) budget.Tier

// ComputeAuditor audits and, if necessary, corrects a COMPUTE-state answer.
// The runner audits each COMPUTE answer before the state is left and MUTATE
// becomes reachable; on a failing audit it applies one strong-LLM correction
// pass and re-audits once, then leaves COMPUTE whatever the re-audit reports.
// Implemented by internal/verify.Verifier in production.
type ComputeAuditor interface {
	ComputeAudit(ctx context.Context, answer string) (bool, error)
	CorrectCompute(ctx context.Context, answer, auditFinding string) (string, error)
}

// Runner drives one task through its template's state sequence.
type Runner struct {
	template     Template
	taskText     string
	strategy     Strategy
	toolFilter   ToolFilter
	modelTier    ModelTier
	auditor        ComputeAuditor
	index          int
	visited        map[State]bool
	policyPassed   bool
	gatesCompleted int
	answer         string
}

// NewRunner builds a Runner starting at index 0, or at checkpoint.StateIndex
// when checkpoint is non-nil and matches template.Name — per §4.8's
// checkpoint-restore behavior, DECOMPOSE/classification is not re-run.
func NewRunner(template Template, taskText string, strategy Strategy, toolFilter ToolFilter, modelTier ModelTier, checkpoint *Checkpoint) *Runner {
	r := &Runner{
		template:     template,
		taskText:     taskText,
		strategy:     strategy,
		toolFilter:   toolFilter,
		modelTier:    modelTier,
		visited:      make(map[State]bool),
		policyPassed: true,
	}
	if checkpoint != nil && checkpoint.ProcessType == template.Name && checkpoint.StateIndex > 0 && checkpoint.StateIndex < len(template.States) {
		r.index = checkpoint.StateIndex
		for i := 0; i < checkpoint.StateIndex; i++ {
			r.visited[template.States[i]] = true
		}
		r.gatesCompleted = checkpoint.GatesCompleted
	}
	return r
}

// SetPolicyPassed records the POLICY_CHECK result so the MUTATE-unreachable
// invariant can be enforced.
func (r *Runner) SetPolicyPassed(passed bool) { r.policyPassed = passed }

// SetComputeAuditor wires the §4.12 arithmetic audit in. When nil (the
// zero value), COMPUTE states are left unaudited.
func (r *Runner) SetComputeAuditor(auditor ComputeAuditor) { r.auditor = auditor }

// CurrentState returns the state the runner would execute next, or
// StateComplete-like sentinel "" once the sequence is exhausted.
func (r *Runner) CurrentState() (State, bool) {
	if r.index >= len(r.template.States) {
		return "", false
	}
	return r.template.States[r.index], true
}

// Checkpoint returns the current resumable checkpoint for this run.
func (r *Runner) Checkpoint() Checkpoint {
	return Checkpoint{ProcessType: r.template.Name, StateIndex: r.index, GatesCompleted: r.gatesCompleted}
}

// ReopenApprovalGate returns execution to APPROVAL_GATE from MUTATE, for
// processes requiring sequential confirmations (e.g. multi-gate migrations).
// Run calls this itself once a MUTATE pass completes on a template whose
// GateCount has not yet been reached.
func (r *Runner) ReopenApprovalGate() bool {
	for i, s := range r.template.States {
		if s == StateApprovalGate {
			r.index = i
			delete(r.visited, StateMutate)
			return true
		}
	}
	return false
}

// Run drives every state in sequence, applying the FSM invariants, and
// returns the final state reached and the strategy's last answer.
func (r *Runner) Run(ctx context.Context) (State, string, error) {
	for {
		state, ok := r.CurrentState()
		if !ok {
			return StateComplete, r.answer, nil
		}

		// Never re-enter DECOMPOSE in the same task.
		if state == StateDecompose && r.visited[StateDecompose] {
			r.index++
			continue
		}

		// MUTATE is unreachable if POLICY_CHECK recorded passed=false —
		// reroute to ESCALATE instead of executing the mutation.
		if state == StateMutate && !r.policyPassed {
			return StateEscalate, r.answer, nil
		}

		r.visited[state] = true

		instruction := r.template.Instructions[state]
		var tools []string
		if r.toolFilter != nil {
			tools = r.toolFilter(state)
		}
		tier := budget.TierFast
		if r.modelTier != nil {
			tier = r.modelTier(state, r.taskText)
		}

		outcome, err := r.strategy.ExecuteState(ctx, StepContext{
			State:       state,
			Instruction: instruction,
			Tools:       tools,
			Tier:        tier,
		})
		if err != nil || outcome.Action == ActionFailure {
			return StateFailed, outcome.Answer, err
		}
		if outcome.Answer != "" {
			r.answer = outcome.Answer
		}

		if state == StateCompute && r.auditor != nil && r.answer != "" {
			r.answer = r.auditComputeState(ctx)
		}

		if state == StateMutate {
			r.gatesCompleted++
			if r.gatesCompleted < r.template.GateCount {
				r.ReopenApprovalGate()
				continue
			}
		}

		r.index++
	}
}

// auditComputeState enforces §4.12 before the runner is allowed to leave
// COMPUTE: it audits the current answer and, on a detected error, runs the
// single allowed strong-LLM correction pass and re-audits the result. It
// never retries more than once, regardless of whether the second audit
// still reports an error.
func (r *Runner) auditComputeState(ctx context.Context) string {
	answer := r.answer
	for attempt := 0; ; attempt++ {
		ok, err := r.auditor.ComputeAudit(ctx, answer)
		if err != nil || ok || attempt > 0 {
			return answer
		}
		corrected, err := r.auditor.CorrectCompute(ctx, answer, "arithmetic audit reported an error")
		if err != nil {
			return answer
		}
		answer = corrected
	}
}
