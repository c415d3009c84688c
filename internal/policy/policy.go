// Package policy implements the deterministic PolicyEvaluator (spec §4.1).
//
// It is a pure function: no I/O, no LLM call. Conditions are compiled and
// evaluated with github.com/expr-lang/expr against the policy document's
// context map, which gives the documented grammar (numeric comparisons,
// ===/!==, &&/||, !name, bare identifier truthiness) for free while staying
// out of the business of writing a hand-rolled expression parser.
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/abhishec/purple-agent/internal/taskerr"
)

// EscalationLevel is one of the eight levels §4.1 defines, ordered by
// severity so multiple triggered rules can be resolved to the highest one.
type EscalationLevel string

const (
	LevelNone      EscalationLevel = "none"
	LevelManager   EscalationLevel = "manager"
	LevelHR        EscalationLevel = "hr"
	LevelFinance   EscalationLevel = "finance"
	LevelCommittee EscalationLevel = "committee"
	LevelLegal     EscalationLevel = "legal"
	LevelCFO       EscalationLevel = "cfo"
	LevelCISO      EscalationLevel = "ciso"
)

var levelRank = map[EscalationLevel]int{
	LevelNone:      0,
	LevelManager:   1,
	LevelHR:        2,
	LevelFinance:   3,
	LevelCommittee: 4,
	LevelLegal:     5,
	LevelCFO:       6,
	LevelCISO:      7,
}

// Rule is one entry of a policy document's rule list.
type Rule struct {
	ID        string          `json:"id"`
	Condition string          `json:"condition"`
	Action    string          `json:"action"` // "block", "require_approval", "escalate", or any other — only block/require_approval/escalate carry meaning
	Level     EscalationLevel `json:"level,omitempty"`
}

// Document is the policy document shape from spec §4.1.
type Document struct {
	Rules   []Rule         `json:"rules"`
	Context map[string]any `json:"context"`
}

// Result is the evaluator's output.
type Result struct {
	Passed           bool            `json:"passed"`
	RequiresApproval bool            `json:"requires_approval"`
	EscalationLevel  EscalationLevel `json:"escalation_level"`
	TriggeredRuleIDs []string        `json:"triggered_rule_ids"`
}

// Evaluator evaluates policy documents. It has no state; all fields are
// immutable configuration, kept as a struct only for symmetry with the
// other stateless leaf components and to give PRIME a single handle.
type Evaluator struct{}

// NewEvaluator constructs a stateless PolicyEvaluator.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate parses and evaluates a policy document. policyDoc == "" returns
// {passed: true} immediately (§4.1: "When the policy document is absent").
// taskText is merged into the evaluation environment as "task_text" so
// conditions may reference it, though none of the 15 built-in process
// templates' sample policies do.
func (e *Evaluator) Evaluate(policyDoc string, taskText string) (Result, error) {
	if policyDoc == "" {
		return Result{Passed: true, EscalationLevel: LevelNone}, nil
	}

	var doc Document
	if err := json.Unmarshal([]byte(policyDoc), &doc); err != nil {
		return Result{}, taskerr.InvalidPolicy("policy document is not valid JSON", err)
	}
	for i, r := range doc.Rules {
		if r.ID == "" || r.Condition == "" {
			return Result{}, taskerr.InvalidPolicy(
				fmt.Sprintf("rule at index %d is missing id or condition", i), nil)
		}
	}

	env := make(map[string]any, len(doc.Context)+1)
	for k, v := range doc.Context {
		env[k] = v
	}
	env["task_text"] = taskText

	result := Result{Passed: true, EscalationLevel: LevelNone}
	for _, rule := range doc.Rules {
		triggered, err := e.evalCondition(rule.Condition, env)
		if err != nil {
			// An unevaluable condition (e.g. syntax error) is a malformed
			// document, not a silently-false rule — distinct from an
			// unknown identifier, which expr resolves to falsy on its own.
			return Result{}, taskerr.InvalidPolicy(
				fmt.Sprintf("rule %q has an invalid condition: %v", rule.ID, err), err)
		}
		if !triggered {
			continue
		}
		result.TriggeredRuleIDs = append(result.TriggeredRuleIDs, rule.ID)
		switch rule.Action {
		case "block":
			result.Passed = false
		case "require_approval":
			result.RequiresApproval = true
		case "escalate":
			if levelRank[rule.Level] > levelRank[result.EscalationLevel] {
				result.EscalationLevel = rule.Level
			}
		}
		if rule.Level != "" && levelRank[rule.Level] > levelRank[result.EscalationLevel] {
			result.EscalationLevel = rule.Level
		}
	}
	return result, nil
}

// evalCondition compiles and runs one condition string against env. Unknown
// identifiers are allowed (they evaluate to nil, which truthy() treats as
// false) rather than producing an evaluation error, per §4.1.
func (e *Evaluator) evalCondition(condition string, env map[string]any) (bool, error) {
	program, err := expr.Compile(condition, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	return truthy(out), nil
}

// truthy converts an expr evaluation result to a boolean the way the spec's
// "bare identifier truthiness" rule implies: present+non-zero/non-empty is
// true, absent/nil/zero/empty is false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}
