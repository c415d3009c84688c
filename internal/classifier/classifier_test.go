package classifier_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/classifier"
	"github.com/abhishec/purple-agent/internal/llm"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (f *fakeProvider) Call(_ context.Context, _ []llm.Message, _ ...llm.CallOptions) (llm.Message, error) {
	f.calls++
	if f.err != nil {
		return llm.Message{}, f.err
	}
	return llm.Message{Role: llm.RoleAssistant, Content: f.response}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestClassify_FallsBackToKeywordOnError(t *testing.T) {
	provider := &fakeProvider{err: context.DeadlineExceeded}
	c, err := classifier.NewClassifier(filepath.Join(t.TempDir(), "synthesized_definitions.json"), provider)
	require.NoError(t, err)

	name := c.Classify(context.Background(), "Please cancel the customer's subscription immediately.")
	assert.Equal(t, "subscription_cancellation", name)
}

func TestClassify_NoKeywordMatchReturnsGeneral(t *testing.T) {
	provider := &fakeProvider{err: context.DeadlineExceeded}
	c, err := classifier.NewClassifier(filepath.Join(t.TempDir(), "synthesized_definitions.json"), provider)
	require.NoError(t, err)

	name := c.Classify(context.Background(), "Tell me a joke about birds.")
	assert.Equal(t, "general", name)
}

func TestClassify_UsesLLMResponseWhenKnown(t *testing.T) {
	provider := &fakeProvider{response: "invoice_reconciliation"}
	c, err := classifier.NewClassifier(filepath.Join(t.TempDir(), "synthesized_definitions.json"), provider)
	require.NoError(t, err)

	name := c.Classify(context.Background(), "reconcile this invoice against the ledger")
	assert.Equal(t, "invoice_reconciliation", name)
}

func TestSynthesise_BuiltinNeverCallsLLM(t *testing.T) {
	provider := &fakeProvider{response: "should not be used"}
	c, err := classifier.NewClassifier(filepath.Join(t.TempDir(), "synthesized_definitions.json"), provider)
	require.NoError(t, err)

	template, err := c.Synthesise(context.Background(), "refund_request", "refund the customer")
	require.NoError(t, err)
	assert.Equal(t, "refund_request", template.Name)
	assert.Equal(t, 0, provider.calls)
}

func TestSynthesise_NovelTemplateCachedAfterOneCall(t *testing.T) {
	provider := &fakeProvider{response: `Here you go:
{"states": ["DECOMPOSE", "ASSESS", "COMPUTE", "COMPLETE"],
 "instructions": {"DECOMPOSE": "split the request", "ASSESS": "gather facts",
                   "COMPUTE": "compute the adjustment", "COMPLETE": "summarise"}}`}
	path := filepath.Join(t.TempDir(), "synthesized_definitions.json")
	c, err := classifier.NewClassifier(path, provider)
	require.NoError(t, err)

	template, err := c.Synthesise(context.Background(), "warranty_claim_review", "review this warranty claim")
	require.NoError(t, err)
	require.Len(t, template.States, 4)
	assert.Equal(t, "COMPLETE", string(template.States[3]))
	assert.Equal(t, 1, provider.calls)

	// Second call for the same novel name must not hit the LLM again.
	template2, err := c.Synthesise(context.Background(), "warranty_claim_review", "review this warranty claim")
	require.NoError(t, err)
	assert.Equal(t, template.Name, template2.Name)
	assert.Equal(t, 1, provider.calls)

	// A fresh Classifier instance loading the same persisted file must also
	// find the cached template without calling the LLM.
	c2, err := classifier.NewClassifier(path, provider)
	require.NoError(t, err)
	template3, err := c2.Synthesise(context.Background(), "warranty_claim_review", "review this warranty claim")
	require.NoError(t, err)
	assert.Equal(t, template.States, template3.States)
	assert.Equal(t, 1, provider.calls)
}
