package verify

import "strings"

// wordSet splits text into a lower-cased word set, the unit §4.12's
// "word-overlap consensus" is defined over (as opposed to caselog's
// token-set keyword overlap or the teacher's bigram bigrams()).
func wordSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?:;\"'()")] = true
	}
	return set
}

// jaccard computes |A∩B| / |A∪B| over two word sets, treating two empty
// sets as fully similar to avoid a 0/0 divide — mirrors the teacher's
// loop_detector.go jaccardSimilarity guard.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
