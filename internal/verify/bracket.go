package verify

import (
	"encoding/json"
	"strings"
)

// IsBracketFormat implements §4.13's detection rule: the first non-whitespace
// character must be '[', the last must be ']', AND the trimmed string must
// parse as a JSON list. A prose answer that merely contains brackets
// ("see [1] for details]") fails the JSON-parse check and is not
// bracket-format.
func IsBracketFormat(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return false
	}
	var list []any
	return json.Unmarshal([]byte(trimmed), &list) == nil
}
