package strategy

import (
	"context"
	"strings"

	"github.com/abhishec/purple-agent/internal/budget"
	"github.com/abhishec/purple-agent/internal/fsm"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/toolrpc"
)

// FSMStrategy drives a task through its process template's state sequence
// one state at a time, per spec §4.8/§4.14.
type FSMStrategy struct {
	Template     fsm.Template
	TaskText     string
	Checkpoint   *fsm.Checkpoint
	PolicyPassed bool
	Fast         llm.Provider
	Strong       llm.Provider
	ToolClient   ToolCaller
	Auditor      fsm.ComputeAuditor

	lastCheckpoint fsm.Checkpoint
}

// Execute builds a fresh fsm.Runner over a per-call state executor and
// drives it to completion.
func (s *FSMStrategy) Execute(ctx context.Context, systemContext string, tools []toolrpc.ToolSchema, tokenBudget *budget.Budget, onState func(string)) (string, error) {
	exec := &fsmStateExecutor{
		fast:          s.Fast,
		strong:        s.Strong,
		toolClient:    s.ToolClient,
		budget:        tokenBudget,
		systemContext: systemContext,
		tools:         tools,
		onState:       onState,
	}
	modelTier := func(state fsm.State, taskText string) budget.Tier { return tokenBudget.GetModel(string(state), taskText) }
	runner := fsm.NewRunner(s.Template, s.TaskText, exec, nil, modelTier, s.Checkpoint)
	runner.SetPolicyPassed(s.PolicyPassed)
	runner.SetComputeAuditor(s.Auditor)
	_, answer, err := runner.Run(ctx)
	s.lastCheckpoint = runner.Checkpoint()
	return answer, err
}

// LastCheckpoint returns the resume point reached by the most recent
// Execute call, for the caller to persist into sessionstore at REFLECT.
func (s *FSMStrategy) LastCheckpoint() fsm.Checkpoint { return s.lastCheckpoint }

// fsmStateExecutor implements fsm.Strategy with a single LLM call per
// state, with one optional tool hop when the model requests it.
type fsmStateExecutor struct {
	fast, strong  llm.Provider
	toolClient    ToolCaller
	budget        *budget.Budget
	systemContext string
	tools         []toolrpc.ToolSchema
	onState       func(string)
}

func (e *fsmStateExecutor) ExecuteState(ctx context.Context, step fsm.StepContext) (fsm.StepOutcome, error) {
	notify(e.onState, string(step.State))

	provider := e.fast
	if step.Tier == budget.TierStrong {
		provider = e.strong
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: e.systemContext + "\n\n" + step.Instruction + "\n\n" + toolsPrompt(e.tools)},
		{Role: llm.RoleUser, Content: step.Instruction},
	}
	resp, err := provider.Call(ctx, messages)
	if err != nil {
		return fsm.StepOutcome{Action: fsm.ActionFailure}, err
	}
	e.budget.Record(resp.Content)

	content := resp.Content
	if req, ok := parseToolCall(content); ok {
		result := callTool(ctx, e.toolClient, req)
		followUp := []llm.Message{
			messages[0],
			{Role: llm.RoleUser, Content: step.Instruction},
			{Role: llm.RoleAssistant, Content: content},
			{Role: llm.RoleUser, Content: "Tool result:\n" + result},
		}
		final, err := provider.Call(ctx, followUp)
		if err != nil {
			return fsm.StepOutcome{Action: fsm.ActionFailure}, err
		}
		e.budget.Record(final.Content)
		content = final.Content
	}

	if strings.HasPrefix(strings.TrimSpace(content), "ERROR") {
		return fsm.StepOutcome{Action: fsm.ActionFailure, Answer: content}, nil
	}
	return fsm.StepOutcome{Action: fsm.ActionContinue, Answer: content}, nil
}
