// Package textmatch canonicalizes free-text titles and scores their overlap.
// It is deliberately ASCII-oriented: talk titles in the source documents are
// English and the matching rules were tuned against that corpus.
package textmatch

import (
	"regexp"
	"strings"
)

// Title-similarity tuning. Titles shorter than the floor never merge on the
// substring rule, which keeps generic short phrases from collapsing together.
const (
	SubstringLengthFloor = 20
	SubstringLengthRatio = 0.7
)

var yearToken = regexp.MustCompile(`^20\d\d$`)

// Normalize lowercases the text, strips everything that is not alphanumeric or
// whitespace, collapses whitespace runs and trims. Pure and deterministic.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// TitlesSimilar reports whether two titles describe the same talk. Exact match
// after normalization always qualifies. Otherwise both normalized titles must
// exceed the length floor and the shorter must be a substring of the longer
// covering more than the ratio threshold, which tolerates abbreviated or
// expanded variants of the same long title.
func TitlesSimilar(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)

	if na == nb {
		return true
	}
	if len(na) <= SubstringLengthFloor || len(nb) <= SubstringLengthFloor {
		return false
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return strings.Contains(longer, shorter) &&
		float64(len(shorter))/float64(len(longer)) > SubstringLengthRatio
}

// Overlap scores two token slices in [0,1]: intersection size divided by the
// size of the larger set. Dividing by the larger set (not the union) lets a
// short, specific token set fully contained in a longer title still score
// meaningfully.
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	common := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common++
		}
	}
	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	return float64(common) / float64(larger)
}

// StripYears drops bare 4-digit year tokens before scoring; years inflate
// overlap without indicating topical similarity.
func StripYears(tokens []string) []string {
	out := tokens[:0:0]
	for _, tok := range tokens {
		if !yearToken.MatchString(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Subtract returns tokens with every member of blacklist removed.
func Subtract(tokens, blacklist []string) []string {
	blocked := toSet(blacklist)
	out := tokens[:0:0]
	for _, tok := range tokens {
		if _, ok := blocked[tok]; !ok {
			out = append(out, tok)
		}
	}
	return out
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
