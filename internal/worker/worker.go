// Package worker implements the Worker orchestrator (spec §4.14): the
// PRIME/EXECUTE/REFLECT pipeline that consumes every leaf component and
// drives one task to an answer, generalised from the teacher's
// internal/web/agent_handler.go (HandleAgent assembling state, running the
// flow, persisting session turns) into a transport-agnostic, phase
// sequenced orchestrator with no HTTP or SSE dependency of its own.
package worker

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abhishec/purple-agent/internal/bandit"
	"github.com/abhishec/purple-agent/internal/budget"
	"github.com/abhishec/purple-agent/internal/caselog"
	"github.com/abhishec/purple-agent/internal/classifier"
	"github.com/abhishec/purple-agent/internal/finance"
	"github.com/abhishec/purple-agent/internal/fsm"
	"github.com/abhishec/purple-agent/internal/hitl"
	"github.com/abhishec/purple-agent/internal/knowledge"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/policy"
	"github.com/abhishec/purple-agent/internal/privacy"
	"github.com/abhishec/purple-agent/internal/sessionstore"
	"github.com/abhishec/purple-agent/internal/synth"
	"github.com/abhishec/purple-agent/internal/taskerr"
	"github.com/abhishec/purple-agent/internal/toolrpc"
	"github.com/abhishec/purple-agent/internal/verify"
)

// DefaultTaskTimeout and DefaultToolTimeout are the spec §5 cancellation
// defaults.
const (
	DefaultTaskTimeout = 120 * time.Second
	DefaultToolTimeout = 10 * time.Second
	reflectDeadline    = 15 * time.Second
)

// Options bundles every dependency the Worker needs, following the
// teacher's AgentHandlerOptions pattern so construction reads as one
// explicit wiring list rather than a long positional constructor.
type Options struct {
	Fast   llm.Provider
	Strong llm.Provider

	Sessions   *sessionstore.Store
	CaseLog    *caselog.Log
	Bandit     *bandit.Bandit
	KB         *knowledge.KnowledgeBase
	EntityMem  *knowledge.Memory
	Accuracy   *knowledge.AccuracyTracker
	Classifier *classifier.Classifier
	Policy     *policy.Evaluator
	Synth      *synth.Registry
	Verifier   *verify.Verifier

	TaskTimeout time.Duration
	ToolTimeout time.Duration
}

// Worker drives one task at a time through PRIME, EXECUTE, REFLECT.
type Worker struct {
	fast   llm.Provider
	strong llm.Provider

	sessions   *sessionstore.Store
	caseLog    *caselog.Log
	bandit     *bandit.Bandit
	kb         *knowledge.KnowledgeBase
	entityMem  *knowledge.Memory
	accuracy   *knowledge.AccuracyTracker
	classifier *classifier.Classifier
	policy     *policy.Evaluator
	synth      *synth.Registry
	verifier   *verify.Verifier

	taskTimeout time.Duration
	toolTimeout time.Duration
}

// New constructs a Worker from opts, filling in the spec §5 timeout
// defaults when left zero.
func New(opts Options) *Worker {
	w := &Worker{
		fast: opts.Fast, strong: opts.Strong,
		sessions: opts.Sessions, caseLog: opts.CaseLog, bandit: opts.Bandit,
		kb: opts.KB, entityMem: opts.EntityMem, accuracy: opts.Accuracy,
		classifier: opts.Classifier, policy: opts.Policy, synth: opts.Synth, verifier: opts.Verifier,
		taskTimeout: opts.TaskTimeout, toolTimeout: opts.ToolTimeout,
	}
	if w.taskTimeout <= 0 {
		w.taskTimeout = DefaultTaskTimeout
	}
	if w.toolTimeout <= 0 {
		w.toolTimeout = DefaultToolTimeout
	}
	return w
}

// Request is one incoming task.
type Request struct {
	TaskText      string
	PolicyDoc     string
	ToolsEndpoint string
	SessionID     string
}

// Result is what Process reports back to the transport layer.
type Result struct {
	Answer          string
	ProcessType     string
	Strategy        bandit.Arm
	Outcome         caselog.Outcome
	Quality         float64
	EscalationLevel policy.EscalationLevel
	Duration        time.Duration
}

// Process runs one task through PRIME, EXECUTE, and REFLECT. Only
// PrivacyViolation, InvalidPolicy, and Fatal errors are returned to the
// caller (per §7's propagation policy); every other failure is folded into
// the answer text and a degraded Result.
func (w *Worker) Process(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	if v, hit := privacy.Check(req.TaskText); hit {
		return Result{}, taskerr.PrivacyViolation(fmt.Sprintf("task text contains a likely %s", v.Label))
	}

	p, err := w.prime(ctx, req)
	if err != nil {
		if taskerr.Is(err, taskerr.KindInvalidPolicy) {
			return Result{}, err
		}
		// Anything else from PRIME (classification/synthesis/tool-discovery
		// failures) degrades to a best-effort general template rather than
		// aborting the task.
		p = w.degradedPrime(req, err)
	}

	answer, toolCount, err := w.execute(ctx, req, p)
	duration := time.Since(start)

	outcome, quality := w.scoreOutcome(answer, err, p, toolCount)
	w.reflect(req, answer, p, outcome, quality)

	if err != nil {
		answer = answer + "\n\n(task ended early: " + err.Error() + ")"
	}

	// Bracket-format answers skip the footer entirely so exact-match scoring
	// against the benchmark harness is never disturbed by trailing text.
	finalAnswer := answer
	if !verify.IsBracketFormat(answer) {
		meta := budget.AnswerMeta{
			Process:  p.processType,
			Policy:   policyFooter(p.policyProvided, p.policyResult),
			Quality:  quality,
			Duration: duration.Round(time.Millisecond).String(),
		}
		finalAnswer = budget.FormatFinalAnswer(answer, meta)
	}
	return Result{
		Answer:          finalAnswer,
		ProcessType:     p.processType,
		Strategy:        p.arm,
		Outcome:         outcome,
		Quality:         quality,
		EscalationLevel: p.policyResult.EscalationLevel,
		Duration:        duration,
	}, nil
}

// primeResult is everything PRIME assembles for EXECUTE.
type primeResult struct {
	processType   string
	template      fsm.Template
	checkpoint    *fsm.Checkpoint
	policyResult   policy.Result
	policyProvided bool
	tools          []toolrpc.ToolSchema
	toolClient     *toolrpc.Client
	systemContext  string
	arm            bandit.Arm
}

// prime runs the 13 sequential PRIME steps from §4.14. The privacy check
// (step 1) is run by the caller before prime is ever invoked, since a
// violation must never reach any of the components below.
func (w *Worker) prime(ctx context.Context, req Request) (primeResult, error) {
	var b strings.Builder

	// 2. RL primer build.
	if primer := w.caseLog.BuildPrimer(req.TaskText); len(primer) > 0 {
		b.WriteString("## Similar past cases\n")
		for _, p := range primer {
			b.WriteString("- " + p + "\n")
		}
		b.WriteString("\n")
	}

	// 3. Session summary fetch.
	turns, summary := w.sessions.Context(req.SessionID)
	if summary != "" {
		b.WriteString("## Prior conversation summary\n" + summary + "\n\n")
	}
	if len(turns) > 0 {
		b.WriteString("## Recent turns\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "- %s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}

	// 4. FSM classification.
	processType := w.classifier.Classify(ctx, req.TaskText)

	// 5. Synthesise template if novel.
	template, err := w.classifier.Synthesise(ctx, processType, req.TaskText)
	if err != nil {
		return primeResult{}, fmt.Errorf("worker: classify/synthesise: %w", err)
	}

	// 6. FSMRunner init — restore checkpoint if present (construction is
	// deferred to strategy.FSMStrategy.Execute; PRIME only fetches it).
	var checkpoint *fsm.Checkpoint
	if cp, ok := w.sessions.Checkpoint(req.SessionID); ok {
		checkpoint = &cp
	}

	// 7. Policy eval.
	policyResult, err := w.policy.Evaluate(req.PolicyDoc, req.TaskText)
	if err != nil {
		return primeResult{}, err
	}
	if !policyResult.Passed {
		b.WriteString(fmt.Sprintf("## Policy\nBLOCKED by rule(s): %s\n\n", strings.Join(policyResult.TriggeredRuleIDs, ", ")))
	} else if policyResult.RequiresApproval {
		b.WriteString(fmt.Sprintf("## Policy\nRequires approval, escalation level: %s\n\n", policyResult.EscalationLevel))
	}

	// 8. Tool discovery.
	var tools []toolrpc.ToolSchema
	var toolClient *toolrpc.Client
	if req.ToolsEndpoint != "" {
		toolClient = toolrpc.NewClient(req.ToolsEndpoint)
		discoverCtx, cancel := context.WithTimeout(ctx, w.toolTimeout)
		if connErr := toolClient.Connect(discoverCtx, req.SessionID); connErr == nil {
			tools, _ = toolClient.Discover(discoverCtx)
		}
		cancel()
	}

	// 9. Gap detection + synthesis.
	if capability, ready := w.synth.DetectAndSynthesise(ctx, req.TaskText); ready {
		b.WriteString(fmt.Sprintf("## Synthesised capability available: %s\n\n", capability))
	}

	// 10. HITL banner — classify the discovered tool set once so the model
	// sees which tools are mutation-class before it ever reaches MUTATE.
	if banner := hitlBanner(tools); banner != "" {
		b.WriteString(banner + "\n")
	}

	// 11. Knowledge + entity injection.
	facts := w.kb.Retrieve(processType, req.TaskText, 3)
	if len(facts) > 0 {
		b.WriteString("## Known facts\n")
		for _, f := range facts {
			b.WriteString("- " + f.FactText + "\n")
		}
		b.WriteString("\n")
	}
	if entities := w.entityMem.Context(req.TaskText); len(entities) > 0 {
		b.WriteString("## Known entities mentioned\n")
		for _, e := range entities {
			fmt.Fprintf(&b, "- %s (%s), seen %d time(s)\n", e.CanonicalName, e.Type, e.SightingCount)
		}
		b.WriteString("\n")
	}

	// 12. Finance pre-compute.
	if note := w.financePrecompute(req.TaskText); note != "" {
		b.WriteString(note + "\n")
	}

	// 13. Assemble system context.
	b.WriteString("## Task\n" + req.TaskText + "\n")
	systemContext := b.String()

	arm := w.bandit.Select(processType)

	return primeResult{
		processType: processType, template: template, checkpoint: checkpoint,
		policyResult: policyResult, policyProvided: req.PolicyDoc != "",
		tools: tools, toolClient: toolClient,
		systemContext: systemContext, arm: arm,
	}, nil
}

// degradedPrime builds the minimal context needed to still attempt the task
// after a non-fatal PRIME failure, per §7's recover-or-downgrade policy.
func (w *Worker) degradedPrime(req Request, cause error) primeResult {
	template := fsm.ReadOnlyTemplate(req.TaskText)
	return primeResult{
		processType:    "general",
		template:       template,
		policyResult:   policy.Result{Passed: true},
		policyProvided: req.PolicyDoc != "",
		systemContext:  "## Task\n" + req.TaskText + fmt.Sprintf("\n\n(degraded: %v)\n", cause),
		arm:            bandit.ArmFivePhase,
	}
}

// policyFooter renders the answer footer's Policy field: N/A when no policy
// document was supplied for this task, PASSED/FAILED otherwise.
func policyFooter(provided bool, r policy.Result) string {
	if !provided {
		return "N/A"
	}
	if r.Passed {
		return "PASSED"
	}
	return "FAILED"
}

// hitlBanner classifies tools and summarises the mutation-gated subset.
func hitlBanner(tools []toolrpc.ToolSchema) string {
	if len(tools) == 0 {
		return ""
	}
	var read, compute, mutate int
	for _, t := range tools {
		switch hitl.Classify(t.Name) {
		case hitl.ClassRead:
			read++
		case hitl.ClassCompute:
			compute++
		default:
			mutate++
		}
	}
	if mutate == 0 {
		return ""
	}
	return fmt.Sprintf("## Tools\n%d read, %d compute, %d mutate tool(s) available; mutate tools are gated behind APPROVAL_GATE.\n",
		read, compute, mutate)
}

// financePrecompute scans taskText for dollar amounts and sums them as a
// rough pre-computed total, reported unscaled alongside the confidence scale
// derived from the trailing context-accuracy rate.
func (w *Worker) financePrecompute(taskText string) string {
	amounts := extractAmounts(taskText)
	if len(amounts) == 0 {
		return ""
	}
	total := finance.Sum(amounts)
	scale := w.accuracy.ConfidenceScale()
	return fmt.Sprintf("## Pre-computed total\nDetected amounts sum to %s (confidence scale %.2f based on recent accuracy).",
		finance.RoundCurrency(total).String(), scale)
}

var amountPattern = regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)

func extractAmounts(text string) []decimal.Decimal {
	var amounts []decimal.Decimal
	for _, m := range amountPattern.FindAllString(text, -1) {
		clean := strings.NewReplacer("$", "", ",", "").Replace(m)
		if d, err := finance.Parse(clean); err == nil {
			amounts = append(amounts, d)
		}
	}
	return amounts
}
