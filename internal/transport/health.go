package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/abhishec/purple-agent/internal/bandit"
	"github.com/abhishec/purple-agent/internal/caselog"
)

// HealthInfo holds the runtime status the health endpoint reports,
// following the teacher's HealthInfo shape but swapping tool/MCP counters
// for the spec §6 "RL metrics" the health endpoint is required to surface.
type HealthInfo struct {
	FastModel    string
	StrongModel  string
	CaseLog      *caselog.Log
	Bandit       *bandit.Bandit
	SessionCount func() int
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	info      HealthInfo
	startTime time.Time
}

// NewHealthHandler creates a health handler recording the server start time.
func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info, startTime: time.Now()}
}

type healthResponse struct {
	Status     string           `json:"status"`
	UptimeSecs int64            `json:"uptime_seconds"`
	Components healthComponents `json:"components"`
}

type healthComponents struct {
	LLM      healthLLM      `json:"llm"`
	RL       healthRL       `json:"rl"`
	Sessions healthSessions `json:"sessions"`
}

type healthLLM struct {
	Status      string `json:"status"`
	FastModel   string `json:"fast_model"`
	StrongModel string `json:"strong_model"`
}

// healthRL reports the RL metrics spec §6 requires of the health endpoint:
// how many cases have accumulated and what the bandit has learned so far
// for each process type it has seen.
type healthRL struct {
	CaseCount int                      `json:"case_count"`
	Bandit    map[string]map[string]int `json:"bandit_counts"`
}

type healthSessions struct {
	Active int `json:"active"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	llmStatus := "ok"
	if h.info.FastModel == "" {
		llmStatus = "degraded"
	}

	sessionCount := 0
	if h.info.SessionCount != nil {
		sessionCount = h.info.SessionCount()
	}

	caseCount := 0
	if h.info.CaseLog != nil {
		caseCount = len(h.info.CaseLog.Entries)
	}

	banditCounts := map[string]map[string]int{}
	if h.info.Bandit != nil {
		for processType := range h.info.Bandit.Stats {
			counts := map[string]int{}
			for arm, n := range h.info.Bandit.Counts(processType) {
				counts[string(arm)] = n
			}
			banditCounts[processType] = counts
		}
	}

	status := "ok"
	if llmStatus == "degraded" {
		status = "degraded"
	}

	resp := healthResponse{
		Status:     status,
		UptimeSecs: int64(time.Since(h.startTime).Seconds()),
		Components: healthComponents{
			LLM: healthLLM{Status: llmStatus, FastModel: h.info.FastModel, StrongModel: h.info.StrongModel},
			RL:  healthRL{CaseCount: caseCount, Bandit: banditCounts},
			Sessions: healthSessions{Active: sessionCount},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
