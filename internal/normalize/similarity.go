package normalize

import "strings"

// minTokenLength drops short stopword-like tokens before set comparison.
const minTokenLength = 3

func tokenSet(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) >= minTokenLength {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// Jaccard computes token-set similarity between two strings: tokens are
// lowercased, whitespace-split, and filtered to length > 2; the score is
// |intersection| / |union|. Two strings with no usable tokens are treated as
// identical.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// LevenshteinRatio is a secondary character-level similarity: 1 minus the
// edit distance normalized by the longer string's length. It is not the
// default matching metric; documented thresholds are calibrated for Jaccard.
func LevenshteinRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	distance := prev[len(rb)]
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}

	return 1.0 - float64(distance)/float64(longer)
}

// Match is the best candidate found by FindSimilar.
type Match struct {
	Index int
	Text  string
	Score float64
}

// FindSimilar returns the candidate with the strictly highest Jaccard
// similarity to question that is at or above threshold, or nil when none
// qualifies. Ties keep the earlier candidate; with stable candidate ordering
// the result is deterministic.
func FindSimilar(question string, candidates []string, threshold float64) *Match {
	var best *Match

	for i, candidate := range candidates {
		score := Jaccard(question, candidate)
		if score < threshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Index: i, Text: candidate, Score: score}
		}
	}

	return best
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
