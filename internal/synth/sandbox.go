package synth

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/abhishec/purple-agent/internal/taskerr"
)

// allowedImports is the restricted module set a synthesised tool body may
// import: math, decimal (shopspring), random, statistics-equivalents. No
// import, file, network, or process operation is reachable — the sandbox
// only loads the interpreter's standard-library symbol tables for these
// paths. shopspring/decimal has no such table, so a body importing it fails
// to load.
var allowedImports = map[string]bool{
	"math":                          true,
	"math/rand":                     true,
	"github.com/shopspring/decimal": true,
	"strconv":                       true,
	"strings":                       true,
	"sort":                          true,
}

// TestCase is one synthesiser-provided example the candidate body must
// reproduce exactly before the tool is registered.
type TestCase struct {
	Input    map[string]any `json:"input"`
	Expected string         `json:"expected"`
}

// Candidate is a synthesised tool awaiting sandbox verification.
type Candidate struct {
	Name      string     `json:"name"`
	Body      string     `json:"body"` // full source: package main + imports + func RunTool(input string) (string, error)
	TestCases []TestCase `json:"test_cases"`
}

// Sandbox runs candidate bodies in a restricted yaegi interpreter.
type Sandbox struct{}

// NewSandbox returns a Sandbox instance. It has no state: every Run call
// constructs a fresh interpreter so one candidate's globals can never leak
// into the next.
func NewSandbox() *Sandbox { return &Sandbox{} }

// Verify runs every one of candidate's test cases against its own body and
// returns nil only if all pass with exact output match. On any test
// failure, import violation, or interpreter panic, returns SandboxFailure
// and the caller must discard the tool.
func (s *Sandbox) Verify(ctx context.Context, candidate Candidate) error {
	if err := validateImports(candidate.Body); err != nil {
		return taskerr.SandboxFailure(fmt.Sprintf("tool %q: %v", candidate.Name, err), err)
	}

	run, err := s.load(candidate.Body)
	if err != nil {
		return taskerr.SandboxFailure(fmt.Sprintf("tool %q failed to load: %v", candidate.Name, err), err)
	}

	for i, tc := range candidate.TestCases {
		input := encodeInput(tc.Input)
		got, runErr := s.callWithTimeout(ctx, run, input)
		if runErr != nil {
			return taskerr.SandboxFailure(
				fmt.Sprintf("tool %q test case %d raised: %v", candidate.Name, i, runErr), runErr)
		}
		if got != tc.Expected {
			return taskerr.SandboxFailure(
				fmt.Sprintf("tool %q test case %d: want %q, got %q", candidate.Name, i, tc.Expected, got), nil)
		}
	}
	return nil
}

// Run executes an already-verified candidate against a single input. Used
// at task time once a candidate has passed Verify and is registered.
func (s *Sandbox) Run(ctx context.Context, candidate Candidate, input map[string]any) (string, error) {
	run, err := s.load(candidate.Body)
	if err != nil {
		return "", taskerr.SandboxFailure(fmt.Sprintf("tool %q failed to load: %v", candidate.Name, err), err)
	}
	return s.callWithTimeout(ctx, run, encodeInput(input))
}

func (s *Sandbox) load(body string) (func(string) (string, error), error) {
	i := interp.New(interp.Options{})
	if err := i.Use(restrictedSymbols()); err != nil {
		return nil, err
	}

	if _, err := i.Eval(wrapCode(body)); err != nil {
		return nil, err
	}
	v, err := i.Eval("main.RunTool")
	if err != nil {
		return nil, err
	}
	fn, ok := v.Interface().(func(string) (string, error))
	if !ok {
		return nil, fmt.Errorf("RunTool has unexpected signature, want func(string) (string, error)")
	}
	return fn, nil
}

func (s *Sandbox) callWithTimeout(ctx context.Context, run func(string) (string, error), input string) (string, error) {
	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic in sandboxed tool: %v", r)}
			}
		}()
		result, err := run(input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func wrapCode(body string) string {
	if strings.Contains(body, "package main") {
		return body
	}
	return "package main\n\n" + body
}

// validateImports parses code's import declarations with go/parser rather
// than matching on raw lines — a textual prefix check can be defeated by
// any spacing go/token itself treats as equivalent (e.g. "import(" with no
// space before the paren), and the stdlib-loaded interpreter would resolve
// the smuggled-in package regardless.
func validateImports(code string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "candidate.go", wrapCode(code), parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse imports: %w", err)
	}

	var forbidden []string
	for _, imp := range file.Imports {
		pkg, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			pkg = strings.Trim(imp.Path.Value, `"`)
		}
		if !allowedImports[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

// restrictedSymbols narrows stdlib.Symbols down to the packages named in
// allowedImports, so even a body that slips past validateImports cannot
// resolve a forbidden package at interpretation time — the two checks are
// independent layers, not one relying on the other.
func restrictedSymbols() interp.Exports {
	restricted := make(interp.Exports, len(allowedImports))
	for key, syms := range stdlib.Symbols {
		pkgPath := strings.TrimSuffix(key, "/"+path.Base(key))
		if allowedImports[pkgPath] {
			restricted[key] = syms
		}
	}
	return restricted
}

// encodeInput renders a param map as the single string argument RunTool
// expects. Synthesised bodies are asked to parse %k=v;... pairs themselves,
// keeping the sandbox boundary to one scalar string in, one string out.
func encodeInput(params map[string]any) string {
	var b strings.Builder
	first := true
	for k, v := range params {
		if !first {
			b.WriteString(";")
		}
		first = false
		fmt.Fprintf(&b, "%s=%v", k, v)
	}
	return b.String()
}
