package synth

import (
	"encoding/json"
	"fmt"
	"strings"
)

// synthesisPayload is the JSON shape the synthesis prompt asks the fast
// LLM to return.
type synthesisPayload struct {
	Body      string `json:"body"`
	TestCases []struct {
		Input    map[string]any `json:"input"`
		Expected string         `json:"expected"`
	} `json:"test_cases"`
}

// parseSynthesisResponse extracts a Candidate from the LLM's raw response
// text, tolerating a wrapping code fence or leading/trailing prose around
// the JSON object.
func parseSynthesisResponse(capabilityName, raw string) (Candidate, error) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return Candidate{}, fmt.Errorf("synth: no JSON object found in synthesis response")
	}

	var payload synthesisPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return Candidate{}, fmt.Errorf("synth: parse synthesis response: %w", err)
	}
	if payload.Body == "" {
		return Candidate{}, fmt.Errorf("synth: synthesis response has no function body")
	}

	candidate := Candidate{Name: capabilityName, Body: payload.Body}
	for _, tc := range payload.TestCases {
		candidate.TestCases = append(candidate.TestCases, TestCase{Input: tc.Input, Expected: tc.Expected})
	}
	return candidate, nil
}

// extractJSONObject returns the substring from the first '{' to its
// matching '}', tolerant of markdown code fences around the object.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
