// Package strategy implements the three interchangeable execution
// strategies named in spec §9's "Dynamic dispatch" note — fsm, five_phase,
// moa — sharing one interface so StrategyBandit can select among them
// without the caller knowing which is in play.
package strategy

import (
	"context"

	"github.com/abhishec/purple-agent/internal/budget"
	"github.com/abhishec/purple-agent/internal/toolrpc"
)

// ExecStrategy is the common interface: execute(system_context, tools,
// budget, state_callback) -> answer. Each strategy calls tokenBudget.Record
// after every model response. FSMStrategy and FivePhaseStrategy also call
// GetModel per state/phase, so §4.2's per-state tier precedence applies to
// them; MoAStrategy uses a fixed fast/strong split.
type ExecStrategy interface {
	Execute(ctx context.Context, systemContext string, tools []toolrpc.ToolSchema, tokenBudget *budget.Budget, onState func(label string)) (string, error)
}

func notify(onState func(string), label string) {
	if onState != nil {
		onState(label)
	}
}
