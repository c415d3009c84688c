package transport

import (
	"encoding/json"
	"net/http"
)

// AgentCard is the capability-metadata document the agent-card endpoint
// returns (spec §6). There is no prescribed schema in the spec beyond "returns
// capability metadata", so this follows the same flat, model-tool-call style
// shape toolrpc.ToolSchema already uses for tool descriptions, applied here
// at the level of the whole agent.
type AgentCard struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities"`
	Models       AgentCardModel `json:"models"`
}

// AgentCardModel names the two tiers the agent calls through.
type AgentCardModel struct {
	Fast   string `json:"fast"`
	Strong string `json:"strong"`
}

// AgentCardHandler serves GET /agent-card.
type AgentCardHandler struct {
	card AgentCard
}

// NewAgentCardHandler builds a handler that always returns card.
func NewAgentCardHandler(card AgentCard) *AgentCardHandler {
	return &AgentCardHandler{card: card}
}

func (h *AgentCardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.card)
}
