package strategy

import (
	"context"
	"fmt"

	"github.com/abhishec/purple-agent/internal/budget"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/toolrpc"
)

// perspectives are the independent angles MoAStrategy asks the fast LLM to
// answer from before a strong-LLM synthesis pass.
var perspectives = []string{
	"Answer the task directly and concisely, citing any tool results used.",
	"Answer the task conservatively, flagging any assumption you had to make.",
	"Answer the task by double-checking every number against the tool results before committing to it.",
}

// MoAStrategy runs a small mixture-of-agents panel as the primary execution
// strategy: several fast-LLM perspectives, synthesised by the strong LLM.
type MoAStrategy struct {
	TaskText   string
	Fast       llm.Provider
	Strong     llm.Provider
	ToolClient ToolCaller
}

func (s *MoAStrategy) Execute(ctx context.Context, systemContext string, tools []toolrpc.ToolSchema, tokenBudget *budget.Budget, onState func(string)) (string, error) {
	notify(onState, "MOA_GENERATE")

	prompt := systemContext + "\n\n" + toolsPrompt(tools) + "\n\nTask: " + s.TaskText

	answers := make([]string, 0, len(perspectives))
	for i, perspective := range perspectives {
		resp, err := s.Fast.Call(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: perspective},
		})
		if err != nil {
			return "", fmt.Errorf("strategy: moa perspective %d: %w", i, err)
		}
		tokenBudget.Record(resp.Content)
		content := resp.Content
		if req, ok := parseToolCall(content); ok {
			result := callTool(ctx, s.ToolClient, req)
			content = "(used tool " + req.Tool + "): " + result
		}
		answers = append(answers, content)
	}

	notify(onState, "MOA_SYNTHESIZE")

	synthesisPrompt := "Three independent answers to the same task follow. Synthesise one final, best answer.\n\nTask: " + s.TaskText
	for i, a := range answers {
		synthesisPrompt += fmt.Sprintf("\n\nPerspective %d:\n%s", i+1, a)
	}

	final, err := s.Strong.Call(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemContext},
		{Role: llm.RoleUser, Content: synthesisPrompt},
	})
	if err != nil {
		return "", err
	}
	tokenBudget.Record(final.Content)
	return final.Content, nil
}
