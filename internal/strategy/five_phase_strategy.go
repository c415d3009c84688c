package strategy

import (
	"context"

	"github.com/abhishec/purple-agent/internal/budget"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/toolrpc"
)

// fivePhases is the fixed, process-type-agnostic alternative to the FSM's
// 15 built-in templates: a single generic sequence usable for any task.
var fivePhases = []struct {
	label       string
	instruction string
}{
	{"UNDERSTAND", "Restate the task and identify what information or action it requires."},
	{"GATHER", "Gather the facts needed, using tools if available."},
	{"COMPUTE", "Perform any calculations the task requires."},
	{"DECIDE", "Decide the course of action or conclusion."},
	{"RESPOND", "Write the final answer."},
}

// FivePhaseStrategy runs a fixed five-step chain (understand, gather,
// compute, decide, respond), each phase's output feeding the next.
type FivePhaseStrategy struct {
	TaskText   string
	Fast       llm.Provider
	Strong     llm.Provider
	ToolClient ToolCaller
}

func (s *FivePhaseStrategy) Execute(ctx context.Context, systemContext string, tools []toolrpc.ToolSchema, tokenBudget *budget.Budget, onState func(string)) (string, error) {
	running := systemContext + "\n\n" + toolsPrompt(tools) + "\n\nTask: " + s.TaskText
	var answer string

	for _, phase := range fivePhases {
		notify(onState, phase.label)

		provider := s.Fast
		if tokenBudget.GetModel(phase.label, s.TaskText) == budget.TierStrong {
			provider = s.Strong
		}

		resp, err := provider.Call(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: running},
			{Role: llm.RoleUser, Content: phase.instruction},
		})
		if err != nil {
			return answer, err
		}
		tokenBudget.Record(resp.Content)

		content := resp.Content
		if req, ok := parseToolCall(content); ok {
			result := callTool(ctx, s.ToolClient, req)
			running += "\n\n" + phase.label + " tool result: " + result
			continue
		}

		running += "\n\n" + phase.label + ": " + content
		answer = content
	}

	return answer, nil
}
