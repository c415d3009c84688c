package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/abhishec/purple-agent/internal/taskerr"
	"github.com/abhishec/purple-agent/internal/worker"
)

// rpcRequest is the spec §6 tasks/send envelope.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  rpcTaskParams `json:"params"`
}

type rpcTaskParams struct {
	ID       string          `json:"id"`
	Message  rpcMessage      `json:"message"`
	Metadata rpcTaskMetadata `json:"metadata"`
}

type rpcMessage struct {
	Role  string    `json:"role"`
	Parts []rpcPart `json:"parts"`
}

type rpcPart struct {
	Text string `json:"text"`
}

type rpcTaskMetadata struct {
	SessionID     string `json:"session_id"`
	PolicyDoc     string `json:"policy_doc"`
	ToolsEndpoint string `json:"tools_endpoint"`
}

type rpcResponse struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      string     `json:"id"`
	Result  *rpcResult `json:"result,omitempty"`
	Error   *rpcError  `json:"error,omitempty"`
}

type rpcResult struct {
	ID        string        `json:"id"`
	Status    rpcStatus     `json:"status"`
	Artifacts []rpcArtifact `json:"artifacts"`
}

type rpcStatus struct {
	State string `json:"state"`
}

type rpcArtifact struct {
	Parts []rpcPart `json:"parts"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TaskHandler serves the single JSON-RPC 2.0 tasks/send method.
type TaskHandler struct {
	worker *worker.Worker
}

// NewTaskHandler builds a handler dispatching every task to w.
func NewTaskHandler(w *worker.Worker) *TaskHandler {
	return &TaskHandler{worker: w}
}

func (h *TaskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "", -32602, "invalid JSON-RPC request: "+err.Error())
		return
	}

	if req.Method != "tasks/send" {
		writeError(w, req.ID, -32601, "unknown method: "+req.Method)
		return
	}
	if len(req.Params.Message.Parts) == 0 {
		writeError(w, req.ID, -32602, "params.message.parts is required")
		return
	}

	taskID := req.Params.ID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	taskText := req.Params.Message.Parts[0].Text
	sessionID := req.Params.Metadata.SessionID
	if sessionID == "" {
		sessionID = taskID
	}

	result, err := h.worker.Process(r.Context(), worker.Request{
		TaskText:      taskText,
		PolicyDoc:     req.Params.Metadata.PolicyDoc,
		ToolsEndpoint: req.Params.Metadata.ToolsEndpoint,
		SessionID:     sessionID,
	})
	if err != nil {
		writeError(w, req.ID, taskerr.JSONRPCCode(kindOf(err)), err.Error())
		return
	}

	state := "completed"
	if result.Outcome == "failure" {
		state = "failed"
	}

	writeJSON(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: &rpcResult{
			ID:     taskID,
			Status: rpcStatus{State: state},
			Artifacts: []rpcArtifact{
				{Parts: []rpcPart{{Text: result.Answer}}},
			},
		},
	})
}

// kindOf recovers the taskerr.Kind from an error returned by Worker.Process;
// Process only ever returns PrivacyViolation, InvalidPolicy, or Fatal to the
// caller (§7), each already a *taskerr.TaskError.
func kindOf(err error) taskerr.Kind {
	var te *taskerr.TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return taskerr.KindFatal
}

func writeError(w http.ResponseWriter, id string, code int, message string) {
	writeJSON(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
