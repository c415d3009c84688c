// Package classifier implements ClassifierAndSynthesiser (spec §4.9):
// classifies a task's process type against the fast LLM (with a keyword
// fallback), and synthesises a Template for novel process types exactly
// once, permanently caching the result.
package classifier

import (
	"context"
	"strings"
	"time"

	"github.com/abhishec/purple-agent/internal/fsm"
	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/store"
)

// classifyTimeout bounds the fast-LLM classification call.
const classifyTimeout = 2 * time.Second

// keywordTable is the fallback used on LLM timeout or error: a simple
// substring match against process-type names we already ship templates for.
var keywordTable = map[string][]string{
	"refund_request":             {"refund"},
	"expense_report_approval":    {"expense report", "expense"},
	"invoice_reconciliation":     {"invoice", "reconcile"},
	"subscription_cancellation":  {"cancel subscription", "subscription"},
	"employee_onboarding":        {"onboard"},
	"employee_offboarding":       {"offboard", "terminate employee"},
	"vendor_payment":             {"vendor payment", "pay vendor"},
	"contract_renewal":           {"renew contract", "contract renewal"},
	"price_adjustment":           {"price adjustment", "adjust price"},
	"support_escalation":         {"escalate", "escalation"},
	"payroll_adjustment":         {"payroll"},
	"inventory_adjustment":       {"inventory"},
	"sla_credit_issuance":        {"sla credit"},
	"data_migration":             {"migration", "migrate"},
	"access_request":             {"access request", "grant access"},
}

// Classifier classifies task text into a process-type name and synthesises
// templates for names with no built-in match.
type Classifier struct {
	fast        llm.Provider
	file        *store.JSONFile
	synthesized map[string]fsm.Template
}

// NewClassifier loads any previously synthesised templates from path
// (synthesized_definitions.json).
func NewClassifier(path string, fast llm.Provider) (*Classifier, error) {
	file := store.NewJSONFile(path)
	synthesized := make(map[string]fsm.Template)
	if err := file.Load(&synthesized); err != nil {
		return nil, err
	}
	return &Classifier{fast: fast, file: file, synthesized: synthesized}, nil
}

// Classify calls the fast LLM with a short prompt enumerating known types;
// on timeout or error, falls back to the keyword table; if nothing matches
// either, returns "general".
func (c *Classifier) Classify(ctx context.Context, taskText string) string {
	timeoutCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	prompt := []llm.Message{
		{Role: llm.RoleSystem, Content: "Classify the business process task into one of these types, or \"general\" if none fit: " +
			strings.Join(knownTypeNames(), ", ") + "."},
		{Role: llm.RoleUser, Content: taskText},
	}
	resp, err := c.fast.Call(timeoutCtx, prompt)
	if err == nil {
		name := strings.TrimSpace(strings.ToLower(resp.Content))
		if name != "" {
			if _, ok := keywordTable[name]; ok || name == "general" {
				return name
			}
		}
	}

	return c.classifyByKeyword(taskText)
}

func (c *Classifier) classifyByKeyword(taskText string) string {
	lower := strings.ToLower(taskText)
	for name, keywords := range keywordTable {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return name
			}
		}
	}
	return "general"
}

func knownTypeNames() []string {
	names := make([]string, 0, len(keywordTable))
	for name := range keywordTable {
		names = append(names, name)
	}
	return names
}

// Synthesise returns a Template for processTypeName, consulting the
// built-in catalogue, then the permanent cache, and only calling the fast
// LLM once per novel name — the result is cached for every future task.
func (c *Classifier) Synthesise(ctx context.Context, processTypeName string, taskText string) (fsm.Template, error) {
	if t, ok := fsm.LookupBuiltin(processTypeName); ok {
		return t, nil
	}
	if t, ok := c.synthesized[processTypeName]; ok {
		return t, nil
	}

	template, err := c.synthesiseNovel(ctx, processTypeName, taskText)
	if err != nil {
		return fsm.Template{}, err
	}

	c.synthesized[processTypeName] = template
	_ = c.file.Save(c.synthesized)
	return template, nil
}

func (c *Classifier) synthesiseNovel(ctx context.Context, processTypeName, taskText string) (fsm.Template, error) {
	prompt := []llm.Message{
		{Role: llm.RoleSystem, Content: "Given a novel business process, choose a subset (in order) of these canonical states: " +
			"DECOMPOSE, ASSESS, COMPUTE, POLICY_CHECK, APPROVAL_GATE, MUTATE, SCHEDULE_NOTIFY, COMPLETE. " +
			"Always start with DECOMPOSE and end with COMPLETE. Provide one short instruction per chosen state. " +
			`Respond as JSON: {"states": ["DECOMPOSE", ...], "instructions": {"DECOMPOSE": "...", ...}}.`},
		{Role: llm.RoleUser, Content: "Process type: " + processTypeName + "\nTask: " + taskText},
	}
	resp, err := c.fast.Call(ctx, prompt)
	if err != nil {
		return fsm.Template{}, err
	}
	return parseTemplateResponse(processTypeName, resp.Content)
}
