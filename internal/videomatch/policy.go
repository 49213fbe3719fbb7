package videomatch

import "regexp"

// Scoring weights and thresholds. All of these are empirically tuned against
// the real candidate corpus; treat changes as policy decisions, not
// correctness fixes.
const (
	// weightTitleOverlap scores token overlap between video title and the
	// full talk title.
	weightTitleOverlap = 0.5
	// weightTopicOverlap scores overlap against topic tokens (talk title
	// minus event-name tokens), weighted slightly above the full title so
	// subject-matter words dominate venue words.
	weightTopicOverlap = 0.55
	// bonusTitleSubstring applies when the normalized video title contains
	// the normalized talk title outright.
	bonusTitleSubstring = 0.35
	// bonusEventSubstring applies when the video title names the event.
	bonusEventSubstring = 0.2
	// weightEventOverlap scores overlap against event-name tokens.
	weightEventOverlap = 0.1
	// bonusAuthorMention applies when the video title or uploader matches
	// the author pattern.
	bonusAuthorMention = 0.15
	// penaltyPlaceholderTalk applies to generic "Speaking at X" talks, which
	// have no topical tokens to match on.
	penaltyPlaceholderTalk = 0.2
	// penaltyGenericVideo applies to bare conference-name-and-year uploads
	// that cover many talks at once.
	penaltyGenericVideo = 0.35
)

// DefaultAutoApplyScore and DefaultTopicOverlapFloor gate automatic writes. A
// video can score high purely on event-name and author terms while saying
// nothing about the talk's subject; the topic floor guards against
// mis-attributing a generic conference recording to an unrelated talk by the
// same speaker.
const (
	DefaultAutoApplyScore    = 0.74
	DefaultTopicOverlapFloor = 0.38
	DefaultSuggestFloor      = 0.58
)

// Report caps.
const (
	maxSuggestedMatches     = 120
	maxMissingCandidates    = 80
	missingConfidenceFloor  = 0.6
	missingAuthorWeight     = 0.55
	missingEventVocabWeight = 0.25
	missingTopicVocabWeight = 0.25
	missingPenaltyWeight    = 0.15
)

// Policy carries the tunable knobs of the reconciler. Zero-value fields fall
// back to the defaults above.
type Policy struct {
	AutoApplyScore    float64
	TopicOverlapFloor float64
	SuggestFloor      float64

	// AuthorPattern matches the speaker's name in video titles/uploaders.
	AuthorPattern *regexp.Regexp
	// GenericVideoTitles match multi-talk conference recordings.
	GenericVideoTitles []*regexp.Regexp
	// TalkVocab / EventVocab / PenaltyVocab drive the missing-candidate
	// confidence heuristic and the pre-filter.
	EventVocab   *regexp.Regexp
	TopicVocab   *regexp.Regexp
	PenaltyVocab *regexp.Regexp
}

// DefaultPolicy returns the tuned policy for the site's own corpus.
func DefaultPolicy(authorPattern string) Policy {
	if authorPattern == "" {
		authorPattern = `jernej|kavka|\bjk\b`
	}
	return Policy{
		AutoApplyScore:    DefaultAutoApplyScore,
		TopicOverlapFloor: DefaultTopicOverlapFloor,
		SuggestFloor:      DefaultSuggestFloor,
		AuthorPattern:     regexp.MustCompile(`(?i)` + authorPattern),
		GenericVideoTitles: []*regexp.Regexp{
			regexp.MustCompile(`^ndc [a-z]+ 20\d\d( track \d+)?$`),
			regexp.MustCompile(`^ddd [a-z]+ 20\d\d$`),
			regexp.MustCompile(`^global ai [a-z ]*20\d\d$`),
		},
		EventVocab:   regexp.MustCompile(`ndc|ddd|user group|conference|session|talk`),
		TopicVocab:   regexp.MustCompile(`ef core|ml\.net|machine learning|form recognizer|source generator|offline ai`),
		PenaltyVocab: regexp.MustCompile(`table talk|episode|tech news`),
	}
}

// talkVideoVocab is the broad pre-filter for "does this even look like a talk
// recording": event brands plus session vocabulary.
var talkVideoVocab = regexp.MustCompile(
	`ndc|ddd|bootcamp|user group|conference|talk|session|ef core|ai hack day|global ai`)
