// Package hitl implements HITLGuard (spec §4.3): classifies tools into
// read/compute/mutate buckets and filters the visible tool set by FSM state
// so mutation tools never reach a non-mutating phase.
package hitl

import (
	"fmt"
	"strings"
)

// Class is a tool's classification.
type Class string

const (
	ClassRead    Class = "read"
	ClassCompute Class = "compute"
	ClassMutate  Class = "mutate"
)

// computePrefixes are checked first — this ordering is load-bearing: it
// catches tools like "estimate_headcount" before the read-prefix check
// would otherwise misclassify them via a later "get_"-like collision.
var computePrefixes = []string{"calculate_", "compute_", "estimate_", "predict_"}

var readPrefixes = []string{
	"get_", "list_", "find_", "search_", "describe_",
	"fetch_", "read_", "show_", "query_",
}

// readOnlyStates are the FSM states where filter_tools strips mutation
// tools out of the visible set.
var readOnlyStates = map[string]bool{
	"ASSESS":                        true,
	"APPROVAL_GATE":                 true,
	"POLICY_CHECK":                  true,
	"COMPUTE":                       true,
	"SCHEDULE_NOTIFY_reading_phase": true,
}

// Classify determines a tool's class from its name, checking the rules in
// the exact order the spec fixes: compute prefixes, then read prefixes,
// else mutate.
func Classify(toolName string) Class {
	for _, p := range computePrefixes {
		if strings.HasPrefix(toolName, p) {
			return ClassCompute
		}
	}
	for _, p := range readPrefixes {
		if strings.HasPrefix(toolName, p) {
			return ClassRead
		}
	}
	return ClassMutate
}

// Tool is the minimal shape FilterTools needs from a tool definition.
type Tool interface {
	ToolName() string
}

// FilterResult is FilterTools' output: the visible tool subset plus an
// optional banner to surface in the prompt when filtering occurred.
type FilterResult[T Tool] struct {
	Visible []T
	Banner  string
}

// FilterTools returns allTools with mutation-class tools removed when
// fsmState is one of the read-only states. When filtering removes at least
// one tool, Banner carries the prompt warning from §4.3.
func FilterTools[T Tool](allTools []T, fsmState string) FilterResult[T] {
	if !readOnlyStates[fsmState] {
		return FilterResult[T]{Visible: allTools}
	}

	visible := make([]T, 0, len(allTools))
	filtered := false
	for _, t := range allTools {
		if Classify(t.ToolName()) == ClassMutate {
			filtered = true
			continue
		}
		visible = append(visible, t)
	}

	result := FilterResult[T]{Visible: visible}
	if filtered {
		result.Banner = fmt.Sprintf(
			"MUTATION TOOLS BLOCKED AT %s. Produce an approval document instead.", fsmState)
	}
	return result
}
