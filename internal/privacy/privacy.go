// Package privacy implements the PRIME-step-1 privacy check: a regex sweep
// over incoming task text for PII shapes that must never reach the model,
// grounded on the same fixed-regex-table style as internal/knowledge's
// entity extractors and internal/schema's column-error pattern.
package privacy

import "regexp"

// pattern pairs a PII shape with the label surfaced in the refusal message.
type pattern struct {
	label string
	re    *regexp.Regexp
}

var patterns = []pattern{
	{"social security number", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit card number", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"US bank routing/account number", regexp.MustCompile(`\brouting (?:number|#)\s*:?\s*\d{9}\b`)},
	{"API key or secret", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|password)\s*[:=]\s*\S{6,}`)},
}

// Violation names which PII shape matched, for the refusal message.
type Violation struct {
	Label string
	Match string
}

// Check scans text and returns the first PII match found, if any.
func Check(text string) (Violation, bool) {
	for _, p := range patterns {
		if m := p.re.FindString(text); m != "" {
			return Violation{Label: p.label, Match: m}, true
		}
	}
	return Violation{}, false
}
