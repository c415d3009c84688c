// Package synth implements DynamicToolRegistry (spec §4.7): two-phase gap
// detection, LLM-driven synthesis of a calculation tool's body and test
// cases, sandboxed verification, and a persistent registry of the tools
// that passed.
package synth

import (
	"context"
	"fmt"
	"time"

	"github.com/abhishec/purple-agent/internal/llm"
	"github.com/abhishec/purple-agent/internal/store"
	"github.com/abhishec/purple-agent/internal/taskerr"
)

// minTaskLenForModelGap is the §4.7 floor below which Phase 2 (the model
// fallback) is skipped even when Phase 1 finds nothing.
const minTaskLenForModelGap = 100

// modelGapTimeout is the hard ceiling on Phase 2's fast-LLM round trip.
const modelGapTimeout = 8 * time.Second

// maxModelCandidates bounds how many gap candidates Phase 2 returns.
const maxModelCandidates = 2

// Registered is one persisted, sandbox-verified tool.
type Registered struct {
	Candidate    Candidate `json:"candidate"`
	Domain       string    `json:"domain"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry owns gap detection, synthesis, and the persistent tool store.
type Registry struct {
	fast    llm.Provider
	sandbox *Sandbox
	file    *store.JSONFile
	tools   map[string]Registered
}

// NewRegistry loads any previously persisted tools from path (tool_registry.json)
// and returns a ready Registry. fast is the fast-tier LLM provider used for
// both Phase 2 gap detection and synthesis.
func NewRegistry(path string, fast llm.Provider) (*Registry, error) {
	file := store.NewJSONFile(path)
	tools := make(map[string]Registered)
	if err := file.Load(&tools); err != nil {
		return nil, fmt.Errorf("synth: load tool registry: %w", err)
	}
	return &Registry{fast: fast, sandbox: NewSandbox(), file: file, tools: tools}, nil
}

// Lookup returns a previously registered tool by capability name.
func (r *Registry) Lookup(name string) (Registered, bool) {
	reg, ok := r.tools[name]
	return reg, ok
}

// DetectAndSynthesise runs the full two-phase pipeline for taskText. If a
// gap is found (by pattern or, failing that, by the fast LLM) and no tool
// with that capability name is already registered, it synthesises,
// verifies, and persists a new tool. Returns the capability name and
// whether a (new or pre-existing) tool is now available for it; a gap that
// fails synthesis or sandbox verification is discarded and ready=false.
func (r *Registry) DetectAndSynthesise(ctx context.Context, taskText string) (capabilityName string, ready bool) {
	capabilityName, signature, found := DetectGap(taskText)
	if !found {
		capabilityName, signature, found = r.detectViaModel(ctx, taskText)
		if !found {
			return "", false
		}
	}

	if _, already := r.tools[capabilityName]; already {
		return capabilityName, true
	}

	candidate, err := r.synthesise(ctx, capabilityName, signature, taskText)
	if err != nil {
		return "", false
	}

	if err := r.sandbox.Verify(ctx, candidate); err != nil {
		return "", false
	}

	r.tools[capabilityName] = Registered{
		Candidate:    candidate,
		Domain:       signature,
		RegisteredAt: time.Now(),
	}
	_ = r.file.Save(r.tools) // best-effort: a failed persist still leaves the tool usable this task
	return capabilityName, true
}

// Execute invokes a registered tool's sandboxed body against input.
func (r *Registry) Execute(ctx context.Context, capabilityName string, input map[string]any) (string, error) {
	reg, ok := r.tools[capabilityName]
	if !ok {
		return "", taskerr.ToolCall(fmt.Sprintf("no synthesised tool registered for %q", capabilityName), nil)
	}
	return r.sandbox.Run(ctx, reg.Candidate, input)
}

// ReverifyAll re-runs every registered tool's own stored test cases and
// returns the names of any that no longer reproduce their original result
// — the reproducibility invariant from §4.7.
func (r *Registry) ReverifyAll(ctx context.Context) []string {
	var drifted []string
	for name, reg := range r.tools {
		if err := r.sandbox.Verify(ctx, reg.Candidate); err != nil {
			drifted = append(drifted, name)
		}
	}
	return drifted
}

func (r *Registry) detectViaModel(ctx context.Context, taskText string) (string, string, bool) {
	if len(taskText) < minTaskLenForModelGap {
		return "", "", false
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, modelGapTimeout)
	defer cancel()

	prompt := []llm.Message{
		{Role: llm.RoleSystem, Content: "You detect missing calculation capabilities in business-process tasks. " +
			"Respond with at most two short capability names (snake_case), one per line, or an empty response if none."},
		{Role: llm.RoleUser, Content: "What custom calculation does this task require?\n\n" + taskText},
	}
	resp, err := r.fast.Call(timeoutCtx, prompt)
	if err != nil || resp.Content == "" {
		return "", "", false
	}

	name := firstNonEmptyLine(resp.Content, maxModelCandidates)
	if name == "" {
		return "", "", false
	}
	return name, "(params map[string]any) string", true
}

func (r *Registry) synthesise(ctx context.Context, capabilityName, signature, taskText string) (Candidate, error) {
	prompt := []llm.Message{
		{Role: llm.RoleSystem, Content: "You write small, pure, side-effect-free Go functions for a sandboxed interpreter. " +
			"Only the modules math, github.com/shopspring/decimal, math/rand, strconv, sort are available. " +
			"Define `func RunTool(input string) (string, error)` that parses `key=value;key=value` pairs from input " +
			"and returns the computed result as a string. " +
			`Respond with ONLY a JSON object: {"body": "<full go source>", "test_cases": [{"input": {...}, "expected": "<string>"}]}. ` +
			"Propose exactly 3 test cases."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Capability: %s\nSignature: %s\nOriginating task: %s", capabilityName, signature, taskText)},
	}
	resp, err := r.fast.Call(ctx, prompt)
	if err != nil {
		return Candidate{}, taskerr.LLM("synthesise "+capabilityName, err)
	}

	return parseSynthesisResponse(capabilityName, resp.Content)
}

func firstNonEmptyLine(text string, max int) string {
	count := 0
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			line := trimLine(text[start:i])
			if line != "" {
				count++
				if count == 1 {
					return line
				}
				if count >= max {
					break
				}
			}
			start = i + 1
		}
	}
	return ""
}

func trimLine(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}
