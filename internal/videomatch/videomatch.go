// Package videomatch reconciles scanned video candidates against the talk
// catalogue. Every talk that still lacks a recording is scored against the
// candidate pool; the confident best match is applied directly and the
// borderline ones are emitted for human review.
package videomatch

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jkdev/speaking/internal/talks"
	"github.com/jkdev/speaking/internal/textmatch"
)

// Candidate is one scanned video, as produced by the channel scan.
type Candidate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Channel     string `json:"channel,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// CandidateDocument is the on-disk shape of a candidate scan.
type CandidateDocument struct {
	Source string      `json:"source,omitempty"`
	Videos []Candidate `json:"videos"`
}

// Match ties a candidate video to a talk with the score that justified it.
type Match struct {
	TalkID       string  `json:"talkId"`
	TalkTitle    string  `json:"talkTitle"`
	VideoID      string  `json:"videoId"`
	VideoTitle   string  `json:"videoTitle"`
	VideoURL     string  `json:"videoUrl"`
	Score        float64 `json:"score"`
	TopicOverlap float64 `json:"topicOverlap"`
}

// MissingCandidate is a video that looks like a recording of a talk we do not
// track at all.
type MissingCandidate struct {
	VideoID     string  `json:"videoId"`
	VideoTitle  string  `json:"videoTitle"`
	VideoURL    string  `json:"videoUrl"`
	Confidence  float64 `json:"confidence"`
	PublishedAt string  `json:"publishedAt,omitempty"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	GeneratedAt           time.Time          `json:"generatedAt"`
	Source                string             `json:"source"`
	TotalVideosScanned    int                `json:"totalVideosScanned"`
	TotalTalks            int                `json:"totalTalks"`
	AppliedMatches        []Match            `json:"appliedMatches"`
	SuggestedMatches      []Match            `json:"suggestedMatches"`
	MissingTalkCandidates []MissingCandidate `json:"missingTalkCandidates"`
}

// Reconciler scores candidates against talks under a Policy.
type Reconciler struct {
	log    *slog.Logger
	policy Policy
	tok    *textmatch.Tokenizer
}

// NewReconciler builds a reconciler. A nil logger or zero policy fields fall
// back to defaults; extraStopwords extend the tokenizer's stopword list.
func NewReconciler(log *slog.Logger, policy Policy, extraStopwords ...string) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	if policy.AutoApplyScore == 0 {
		policy.AutoApplyScore = DefaultAutoApplyScore
	}
	if policy.TopicOverlapFloor == 0 {
		policy.TopicOverlapFloor = DefaultTopicOverlapFloor
	}
	if policy.SuggestFloor == 0 {
		policy.SuggestFloor = DefaultSuggestFloor
	}
	if policy.AuthorPattern == nil {
		def := DefaultPolicy("")
		policy.AuthorPattern = def.AuthorPattern
		if policy.GenericVideoTitles == nil {
			policy.GenericVideoTitles = def.GenericVideoTitles
		}
		if policy.EventVocab == nil {
			policy.EventVocab = def.EventVocab
		}
		if policy.TopicVocab == nil {
			policy.TopicVocab = def.TopicVocab
		}
		if policy.PenaltyVocab == nil {
			policy.PenaltyVocab = def.PenaltyVocab
		}
	}
	return &Reconciler{log: log, policy: policy, tok: textmatch.NewTokenizer(extraStopwords...)}
}

// talkProfile caches the per-talk tokenization so the scoring loop does not
// redo it on every pairing. Event fields come from the most recent event only;
// historical venues must not inflate event bonuses or shrink topic tokens.
type talkProfile struct {
	talk        *talks.Talk
	titleNorm   string
	titleTokens []string
	topicTokens []string
	eventNorm   string
	eventTokens []string
	placeholder bool
}

// candProfile caches the per-candidate tokenization.
type candProfile struct {
	cand      Candidate
	norm      string
	tokens    []string
	authorHit bool
	generic   bool
}

// Run scores every talk without a video against the candidate pool, mutates
// the matched talks' VideoURL in place and returns the report. The talk slice
// is modified; candidates are read-only. One recording may legitimately match
// several talks (a combined session video), so applied candidates stay in the
// pool.
func (r *Reconciler) Run(source string, ts []talks.Talk, cands []Candidate) (*Report, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("reconcile videos: no talks loaded")
	}
	cands = dedupCandidates(cands)

	var pool []*candProfile
	for _, cand := range cands {
		norm := textmatch.Normalize(cand.Title)
		if norm == "" || !r.seemsLikeTalkVideo(cand) {
			continue
		}
		pool = append(pool, &candProfile{
			cand:   cand,
			norm:   norm,
			tokens: textmatch.StripYears(r.tok.Tokenize(cand.Title)),
			authorHit: r.policy.AuthorPattern.MatchString(cand.Title) ||
				r.policy.AuthorPattern.MatchString(cand.Channel),
			generic: r.genericVideoTitle(norm),
		})
	}

	report := &Report{
		GeneratedAt:           time.Now().UTC(),
		Source:                source,
		TotalVideosScanned:    len(cands),
		TotalTalks:            len(ts),
		AppliedMatches:        []Match{},
		SuggestedMatches:      []Match{},
		MissingTalkCandidates: []MissingCandidate{},
	}

	matched := make(map[string]bool, len(cands))
	for i := range ts {
		t := &ts[i]
		if t.HasVideo() {
			continue
		}
		p := r.profile(t)
		if p.titleNorm == "" {
			continue
		}
		best, bestScore, bestTopic := r.bestCandidate(p, pool)
		if best == nil {
			continue
		}
		m := Match{
			TalkID:       t.ID,
			TalkTitle:    t.Title,
			VideoID:      best.cand.ID,
			VideoTitle:   best.cand.Title,
			VideoURL:     best.cand.URL,
			Score:        round2(bestScore),
			TopicOverlap: round2(bestTopic),
		}
		switch {
		case !p.placeholder && bestTopic >= r.policy.TopicOverlapFloor && bestScore >= r.policy.AutoApplyScore:
			url := best.cand.URL
			t.VideoURL = &url
			matched[candKey(best.cand)] = true
			report.AppliedMatches = append(report.AppliedMatches, m)
			r.log.Info("applied video match",
				"talk", t.ID, "video", best.cand.ID, "score", m.Score)
		case bestScore >= r.policy.SuggestFloor:
			matched[candKey(best.cand)] = true
			report.SuggestedMatches = append(report.SuggestedMatches, m)
		}
	}

	sort.SliceStable(report.SuggestedMatches, func(i, j int) bool {
		return report.SuggestedMatches[i].Score > report.SuggestedMatches[j].Score
	})
	if len(report.SuggestedMatches) > maxSuggestedMatches {
		report.SuggestedMatches = report.SuggestedMatches[:maxSuggestedMatches]
	}

	report.MissingTalkCandidates = r.missingCandidates(cands, matched)

	r.log.Info("video reconciliation done",
		"scanned", report.TotalVideosScanned,
		"applied", len(report.AppliedMatches),
		"suggested", len(report.SuggestedMatches),
		"missing", len(report.MissingTalkCandidates))
	return report, nil
}

func (r *Reconciler) profile(t *talks.Talk) *talkProfile {
	p := &talkProfile{
		talk:        t,
		titleNorm:   textmatch.Normalize(t.Title),
		placeholder: strings.HasPrefix(textmatch.Normalize(t.Title), "speaking at "),
	}
	p.titleTokens = textmatch.StripYears(r.tok.Tokenize(t.Title))
	if len(t.Events) > 0 {
		// Events are sorted most-recent-first by the enricher.
		ev := t.Events[0]
		p.eventNorm = textmatch.Normalize(ev.EventName)
		p.eventTokens = textmatch.StripYears(r.tok.Tokenize(ev.EventName))
	}
	p.topicTokens = textmatch.Subtract(p.titleTokens, p.eventTokens)
	return p
}

// bestCandidate returns the highest-scoring candidate for the talk, with its
// score and topic overlap.
func (r *Reconciler) bestCandidate(p *talkProfile, pool []*candProfile) (*candProfile, float64, float64) {
	var (
		best      *candProfile
		bestScore = -1.0
		bestTopic float64
	)
	for _, cp := range pool {
		titleOverlap := textmatch.Overlap(cp.tokens, p.titleTokens)
		topicOverlap := textmatch.Overlap(cp.tokens, p.topicTokens)
		score := weightTitleOverlap*titleOverlap + weightTopicOverlap*topicOverlap
		if strings.Contains(cp.norm, p.titleNorm) {
			score += bonusTitleSubstring
		}
		if p.eventNorm != "" && strings.Contains(cp.norm, p.eventNorm) {
			score += bonusEventSubstring
		}
		score += weightEventOverlap * textmatch.Overlap(cp.tokens, p.eventTokens)
		if cp.authorHit {
			score += bonusAuthorMention
		}
		if p.placeholder {
			score -= penaltyPlaceholderTalk
		}
		if cp.generic {
			score -= penaltyGenericVideo
		}
		if score > bestScore {
			best, bestScore, bestTopic = cp, score, topicOverlap
		}
	}
	return best, bestScore, bestTopic
}

// missingCandidates flags unmatched videos that still look like recordings of
// the speaker's own talks. Vocab checks run over title and uploader together;
// channels like "NDC Conferences" carry the event signal on their own.
func (r *Reconciler) missingCandidates(cands []Candidate, matched map[string]bool) []MissingCandidate {
	out := []MissingCandidate{}
	for _, cand := range cands {
		if matched[candKey(cand)] {
			continue
		}
		norm := textmatch.Normalize(cand.Title)
		if norm == "" {
			continue
		}
		authorHit := r.policy.AuthorPattern.MatchString(cand.Title) ||
			r.policy.AuthorPattern.MatchString(cand.Channel)
		if !authorHit {
			continue
		}
		haystack := textmatch.Normalize(cand.Title + " " + cand.Channel)
		conf := missingAuthorWeight
		if r.policy.EventVocab.MatchString(haystack) {
			conf += missingEventVocabWeight
		}
		if r.policy.TopicVocab.MatchString(haystack) {
			conf += missingTopicVocabWeight
		}
		if r.policy.PenaltyVocab.MatchString(haystack) {
			conf -= missingPenaltyWeight
		}
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		if conf < missingConfidenceFloor {
			continue
		}
		out = append(out, MissingCandidate{
			VideoID:     cand.ID,
			VideoTitle:  cand.Title,
			VideoURL:    cand.URL,
			Confidence:  round2(conf),
			PublishedAt: cand.PublishedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxMissingCandidates {
		out = out[:maxMissingCandidates]
	}
	return out
}

func (r *Reconciler) seemsLikeTalkVideo(cand Candidate) bool {
	norm := textmatch.Normalize(cand.Title)
	if r.policy.AuthorPattern.MatchString(cand.Title) || r.policy.AuthorPattern.MatchString(cand.Channel) {
		return true
	}
	return talkVideoVocab.MatchString(norm)
}

func (r *Reconciler) genericVideoTitle(norm string) bool {
	for _, re := range r.policy.GenericVideoTitles {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}

func candKey(c Candidate) string {
	if c.ID != "" {
		return c.ID
	}
	return c.URL
}

func dedupCandidates(cands []Candidate) []Candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		key := candKey(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
