package corpus

import (
	"regexp"
	"strings"
)

// minTokenLength drops noise words ("a", "of", "to") from the lexical sets.
const minTokenLength = 3

var wordRe = regexp.MustCompile(`\w+`)

// TokenSet is a set of normalized word tokens for one entity feature.
type TokenSet map[string]struct{}

// Tokenize extracts the normalized token set from cleaned text:
// lowercase, word characters only, tokens shorter than three characters
// dropped.
func Tokenize(text string) TokenSet {
	if text == "" {
		return nil
	}

	set := make(TokenSet)
	for _, tok := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < minTokenLength {
			continue
		}
		set[tok] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Jaccard computes |a ∩ b| / |a ∪ b|, or 0 if either set is empty.
func Jaccard(a, b TokenSet) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float32(inter) / float32(union)
}
