package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhishec/purple-agent/internal/fsm"
)

type templatePayload struct {
	States       []string          `json:"states"`
	Instructions map[string]string `json:"instructions"`
}

// parseTemplateResponse extracts a fsm.Template from the synthesiser LLM's
// raw response, tolerating prose around the JSON object.
func parseTemplateResponse(processTypeName, raw string) (fsm.Template, error) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return fsm.Template{}, fmt.Errorf("classifier: no JSON object in synthesis response")
	}

	var payload templatePayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return fsm.Template{}, fmt.Errorf("classifier: parse synthesis response: %w", err)
	}
	if len(payload.States) == 0 {
		return fsm.Template{}, fmt.Errorf("classifier: synthesis response has no states")
	}

	states := make([]fsm.State, 0, len(payload.States))
	instructions := make(map[fsm.State]string, len(payload.Instructions))
	for _, s := range payload.States {
		state := fsm.State(strings.ToUpper(strings.TrimSpace(s)))
		states = append(states, state)
		if instr, ok := payload.Instructions[s]; ok {
			instructions[state] = instr
		}
	}

	return fsm.Template{Name: processTypeName, States: states, Instructions: instructions}, nil
}

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
