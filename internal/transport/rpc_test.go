package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/bandit"
	"github.com/abhishec/purple-agent/internal/caselog"
	"github.com/abhishec/purple-agent/internal/classifier"
	"github.com/abhishec/purple-agent/internal/knowledge"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/policy"
	"github.com/abhishec/purple-agent/internal/sessionstore"
	"github.com/abhishec/purple-agent/internal/synth"
	"github.com/abhishec/purple-agent/internal/transport"
	"github.com/abhishec/purple-agent/internal/verify"
	"github.com/abhishec/purple-agent/internal/worker"
)

type echoProvider struct{ content string }

func (p echoProvider) Call(context.Context, []llm.Message, ...llm.CallOptions) (llm.Message, error) {
	return llm.Message{Role: llm.RoleAssistant, Content: p.content}, nil
}
func (echoProvider) Name() string { return "echo-test-model" }

// newTestWorker wires a minimal but real Worker for exercising the
// transport layer's request/response plumbing; the LLM responses only need
// to be well-formed enough to carry a read-only task to completion.
func newTestWorker(t *testing.T) *worker.Worker {
	t.Helper()
	dir := t.TempDir()
	path := func(name string) string { return dir + "/" + name }

	fast := echoProvider{content: `{"completeness": 0.9, "policy_compliance": 0.9, "tool_coverage": 1.0}`}

	caseLog, err := caselog.NewLog(path("case_log.json"))
	require.NoError(t, err)
	strategyBandit, err := bandit.New(path("strategy_bandit.json"))
	require.NoError(t, err)
	kb, err := knowledge.NewKnowledgeBase(path("knowledge_base.json"))
	require.NoError(t, err)
	entityMem, err := knowledge.NewMemory(path("entity_memory.json"))
	require.NoError(t, err)
	taskClassifier, err := classifier.NewClassifier(path("synthesized_definitions.json"), fast)
	require.NoError(t, err)
	synthRegistry, err := synth.NewRegistry(path("tool_registry.json"), fast)
	require.NoError(t, err)

	return worker.New(worker.Options{
		Fast:   fast,
		Strong: fast,

		Sessions:   sessionstore.NewStore(30*time.Minute, 40),
		CaseLog:    caseLog,
		Bandit:     strategyBandit,
		KB:         kb,
		EntityMem:  entityMem,
		Accuracy:   knowledge.NewAccuracyTracker(),
		Classifier: taskClassifier,
		Policy:     policy.NewEvaluator(),
		Synth:      synthRegistry,
		Verifier:   verify.New(fast, fast),

		TaskTimeout: 5 * time.Second,
		ToolTimeout: time.Second,
	})
}

func doRPC(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tasks/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestTaskHandler_ServeHTTP_ReturnsCompletedResult(t *testing.T) {
	h := transport.NewTaskHandler(newTestWorker(t))

	rec, decoded := doRPC(t, h, `{
		"jsonrpc": "2.0",
		"id": "req-1",
		"method": "tasks/send",
		"params": {
			"id": "task-1",
			"message": {"role": "user", "parts": [{"text": "what is the current refund status?"}]},
			"metadata": {"session_id": "sess-1"}
		}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "req-1", decoded["id"])
	require.Nil(t, decoded["error"])

	result, ok := decoded["result"].(map[string]any)
	require.True(t, ok, "expected a result object")
	assert.Equal(t, "task-1", result["id"])
	status, ok := result["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", status["state"])
}

func TestTaskHandler_ServeHTTP_GeneratesIDWhenOmitted(t *testing.T) {
	h := transport.NewTaskHandler(newTestWorker(t))

	_, decoded := doRPC(t, h, `{
		"jsonrpc": "2.0",
		"id": "req-2",
		"method": "tasks/send",
		"params": {
			"message": {"role": "user", "parts": [{"text": "what is the status?"}]}
		}
	}`)

	result, ok := decoded["result"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, result["id"])
}

func TestTaskHandler_ServeHTTP_UnknownMethodReturnsMethodNotFoundCode(t *testing.T) {
	h := transport.NewTaskHandler(newTestWorker(t))

	_, decoded := doRPC(t, h, `{"jsonrpc": "2.0", "id": "req-3", "method": "tasks/cancel", "params": {}}`)

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok, "expected an error object")
	assert.Equal(t, float64(-32601), errObj["code"])
}

func TestTaskHandler_ServeHTTP_MissingPartsReturnsInvalidParamsCode(t *testing.T) {
	h := transport.NewTaskHandler(newTestWorker(t))

	_, decoded := doRPC(t, h, `{
		"jsonrpc": "2.0",
		"id": "req-4",
		"method": "tasks/send",
		"params": {"message": {"role": "user", "parts": []}}
	}`)

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok, "expected an error object")
	assert.Equal(t, float64(-32602), errObj["code"])
}

func TestTaskHandler_ServeHTTP_RejectsNonPOST(t *testing.T) {
	h := transport.NewTaskHandler(newTestWorker(t))

	req := httptest.NewRequest(http.MethodGet, "/tasks/send", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTaskHandler_ServeHTTP_PrivacyViolationMapsToInvalidParamsCode(t *testing.T) {
	h := transport.NewTaskHandler(newTestWorker(t))

	_, decoded := doRPC(t, h, `{
		"jsonrpc": "2.0",
		"id": "req-5",
		"method": "tasks/send",
		"params": {"message": {"role": "user", "parts": [{"text": "ssn is 123-45-6789, refund it"}]}}
	}`)

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok, "expected an error object")
	assert.Equal(t, float64(-32602), errObj["code"])
}
