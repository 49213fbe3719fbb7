package textmatch

import "strings"

// defaultStopwords are articles, prepositions and generic talk/conference
// vocabulary that carry no topical signal when matching video titles to talks.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"how", "in", "into", "is", "it", "of", "on", "or", "the", "to",
	"with", "your", "using",
	"session", "speaking", "speaker", "talk", "conference", "presented",
	"event", "events", "online", "recording", "track", "live", "day",
}

// minTokenLength: tokens this short are noise for overlap scoring.
const minTokenLength = 3

// Tokenizer splits normalized text into topical tokens, dropping short tokens
// and stopwords.
type Tokenizer struct {
	stop map[string]struct{}
}

// NewTokenizer builds a tokenizer with the default stopword list plus any
// extra words (already lowercased) from configuration.
func NewTokenizer(extra ...string) *Tokenizer {
	stop := make(map[string]struct{}, len(defaultStopwords)+len(extra))
	for _, w := range defaultStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range extra {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			stop[w] = struct{}{}
		}
	}
	return &Tokenizer{stop: stop}
}

// Tokenize normalizes the text, splits on whitespace and filters out short
// tokens and stopwords.
func (tk *Tokenizer) Tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := fields[:0:0]
	for _, tok := range fields {
		if len(tok) < minTokenLength {
			continue
		}
		if _, ok := tk.stop[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Tokenize applies the default tokenizer.
func Tokenize(s string) []string {
	return defaultTokenizer.Tokenize(s)
}

var defaultTokenizer = NewTokenizer()
