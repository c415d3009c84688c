// Package llm defines the text-in/text-out LLM collaborator interface.
//
// Per spec §1 the LLM API is an external collaborator: "a text-in/text-out
// service with two tiers — fast/cheap and strong/expensive". Nothing in
// this package talks to function-calling/tool-call wire formats; tool
// invocation is handled entirely by internal/toolrpc and internal/synth.
package llm

import "context"

// Message is one turn in an LLM conversation.
type Message struct {
	Role    string `json:"role"` // RoleSystem, RoleUser, or RoleAssistant
	Content string `json:"content"`
}

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tier identifies which model class a call should target.
type Tier string

const (
	TierFast   Tier = "fast"
	TierStrong Tier = "strong"
)

// CallOptions allows per-call sampling overrides, used by the Mixture-of-
// Agents verify/challenge passes (§4.12) which need distinct temperatures
// or top_p values from the same provider instance.
type CallOptions struct {
	Temperature *float32
	TopP        *float32
}

// Provider is the interface both model tiers implement.
type Provider interface {
	// Call sends messages and returns the complete response text.
	Call(ctx context.Context, messages []Message, opts ...CallOptions) (Message, error)

	// Name returns a human-readable provider/model identifier for logging
	// and for the footer/agent-card metadata.
	Name() string
}

// Tiered bundles the two model tiers the pipeline is built around.
type Tiered struct {
	Fast   Provider
	Strong Provider
}

// Call dispatches to the requested tier.
func (t Tiered) Call(ctx context.Context, tier Tier, messages []Message, opts ...CallOptions) (Message, error) {
	if tier == TierStrong && t.Strong != nil {
		return t.Strong.Call(ctx, messages, opts...)
	}
	return t.Fast.Call(ctx, messages, opts...)
}
