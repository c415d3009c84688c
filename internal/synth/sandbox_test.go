package synth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishec/purple-agent/internal/synth"
	"github.com/abhishec/purple-agent/internal/taskerr"
)

const sumToolBody = `
package main

import (
	"strconv"
	"strings"
)

func RunTool(input string) (string, error) {
	vals := map[string]float64{}
	for _, part := range strings.Split(input, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return "", err
		}
		vals[kv[0]] = v
	}
	return strconv.FormatFloat(vals["a"]+vals["b"], 'f', -1, 64), nil
}
`

func TestSandbox_VerifyPassesWithMatchingTestCases(t *testing.T) {
	sandbox := synth.NewSandbox()
	candidate := synth.Candidate{
		Name: "add_two_numbers",
		Body: sumToolBody,
		TestCases: []synth.TestCase{
			{Input: map[string]any{"a": 1, "b": 2}, Expected: "3"},
			{Input: map[string]any{"a": 10, "b": -4}, Expected: "6"},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sandbox.Verify(ctx, candidate)
	require.NoError(t, err)
}

func TestSandbox_VerifyFailsOnMismatchedExpectation(t *testing.T) {
	sandbox := synth.NewSandbox()
	candidate := synth.Candidate{
		Name: "add_two_numbers",
		Body: sumToolBody,
		TestCases: []synth.TestCase{
			{Input: map[string]any{"a": 1, "b": 2}, Expected: "999"},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sandbox.Verify(ctx, candidate)
	require.Error(t, err)
	assert.True(t, taskerr.Is(err, taskerr.KindSandboxFailure))
}

func TestSandbox_VerifyRejectsForbiddenImport(t *testing.T) {
	sandbox := synth.NewSandbox()
	candidate := synth.Candidate{
		Name: "sneaky_tool",
		Body: "package main\n\nimport \"os\"\n\nfunc RunTool(input string) (string, error) {\n\tos.Exit(1)\n\treturn \"\", nil\n}",
		TestCases: []synth.TestCase{
			{Input: map[string]any{}, Expected: ""},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sandbox.Verify(ctx, candidate)
	require.Error(t, err)
	assert.True(t, taskerr.Is(err, taskerr.KindSandboxFailure))
	assert.Contains(t, err.Error(), "forbidden imports")
}

func TestSandbox_VerifyRejectsForbiddenImportWithoutSpaceBeforeParen(t *testing.T) {
	sandbox := synth.NewSandbox()
	candidate := synth.Candidate{
		Name: "sneaky_tool_compact",
		Body: "package main\n\nimport(\n\t\"os\"\n)\n\nfunc RunTool(input string) (string, error) {\n\tos.Exit(1)\n\treturn \"\", nil\n}",
		TestCases: []synth.TestCase{
			{Input: map[string]any{}, Expected: ""},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sandbox.Verify(ctx, candidate)
	require.Error(t, err)
	assert.True(t, taskerr.Is(err, taskerr.KindSandboxFailure))
	assert.Contains(t, err.Error(), "forbidden imports")
}

func TestSandbox_VerifyRejectsForbiddenImportAlongsideAllowedOnes(t *testing.T) {
	sandbox := synth.NewSandbox()
	candidate := synth.Candidate{
		Name: "sneaky_tool_mixed",
		Body: "package main\n\nimport (\n\t\"strconv\"\n\t\"os\"\n)\n\nfunc RunTool(input string) (string, error) {\n\tos.Exit(1)\n\treturn strconv.Itoa(0), nil\n}",
		TestCases: []synth.TestCase{
			{Input: map[string]any{}, Expected: ""},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sandbox.Verify(ctx, candidate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden imports")
}

func TestSandbox_RunExecutesVerifiedCandidate(t *testing.T) {
	sandbox := synth.NewSandbox()
	candidate := synth.Candidate{Name: "add_two_numbers", Body: sumToolBody}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := sandbox.Run(ctx, candidate, map[string]any{"a": 4, "b": 5})
	require.NoError(t, err)
	assert.Equal(t, "9", result)
}
