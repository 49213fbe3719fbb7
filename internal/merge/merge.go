// Package merge folds the adapters' outputs into a single deduplicated talk
// list. Duplicate talks are detected by fuzzy title similarity; duplicate
// events by exact (eventName, date) equality. Scalar conflicts are resolved by
// an explicit fill policy instead of iteration-order accidents.
package merge

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jkdev/speaking/internal/sources"
	"github.com/jkdev/speaking/internal/talks"
	"github.com/jkdev/speaking/internal/textmatch"
)

// FillMode decides how a later source's non-empty scalar interacts with an
// already-set field.
type FillMode string

const (
	// FillFirst keeps the first non-empty value across the whole run; later
	// sources only fill gaps. This is the historical behavior.
	FillFirst FillMode = "first"
	// FillOverride lets later sources overwrite earlier non-empty values,
	// giving the last source in the order authoritative precedence.
	FillOverride FillMode = "override"
)

// ParseFillMode validates a configured fill mode string.
func ParseFillMode(s string) (FillMode, error) {
	switch FillMode(s) {
	case FillFirst, FillOverride:
		return FillMode(s), nil
	case "":
		return FillFirst, nil
	default:
		return "", fmt.Errorf("unknown fill mode %q (want %q or %q)", s, FillFirst, FillOverride)
	}
}

// Policy names the two levers that decide merge outcomes: the order sources
// are folded in, and what a later non-empty scalar does to an earlier one.
type Policy struct {
	Order    []string
	FillMode FillMode
}

// DefaultPolicy folds the historical archive first, then the Sessionize
// export, then the MVP export, then the manual curation file, filling only
// empty fields.
func DefaultPolicy() Policy {
	return Policy{
		Order: []string{
			sources.SourceLegacy,
			sources.SourceSessionize,
			sources.SourceMVP,
			sources.SourceManual,
		},
		FillMode: FillFirst,
	}
}

// Accumulator is the explicit merge state passed through each fold step: the
// finalized talk list plus an exact normalized-title index. The index alone
// would under-merge near-duplicates, so it only bounds the pairwise
// titlesSimilar scan; it never changes which talk a candidate merges into.
type Accumulator struct {
	fill  FillMode
	talks []talks.Talk
	index map[string]int // normalized title -> first index with that title
}

// NewAccumulator creates an empty accumulator with the given fill mode.
func NewAccumulator(fill FillMode) *Accumulator {
	return &Accumulator{
		fill:  fill,
		index: make(map[string]int),
	}
}

// Talks returns the finalized talk list.
func (a *Accumulator) Talks() []talks.Talk {
	return a.talks
}

// AddOrMerge folds one candidate talk into the accumulator. Returns true when
// the candidate merged into an existing talk, false when it was inserted.
func (a *Accumulator) AddOrMerge(candidate talks.Talk) bool {
	// An exact normalized-title hit caps the scan: an earlier similar talk
	// would still win, matching what the unbounded scan would pick.
	limit := len(a.talks)
	exact := -1
	if i, ok := a.index[textmatch.Normalize(candidate.Title)]; ok {
		limit = i
		exact = i
	}

	for i := 0; i < limit; i++ {
		if textmatch.TitlesSimilar(candidate.Title, a.talks[i].Title) {
			a.mergeInto(i, candidate)
			return true
		}
	}
	if exact >= 0 {
		a.mergeInto(exact, candidate)
		return true
	}

	a.insert(candidate)
	return false
}

func (a *Accumulator) mergeInto(i int, candidate talks.Talk) {
	existing := &a.talks[i]

	// Union events; an event is a duplicate iff eventName AND date both
	// match exactly.
	for _, ev := range candidate.Events {
		if !hasEvent(existing.Events, ev) {
			existing.Events = append(existing.Events, ev)
		}
	}

	if candidate.Description != "" && (a.fill == FillOverride || existing.Description == "") {
		existing.Description = candidate.Description
	}
	fillString(&existing.VideoURL, candidate.VideoURL, a.fill)
	fillString(&existing.SlidesURL, candidate.SlidesURL, a.fill)
	fillString(&existing.GithubURL, candidate.GithubURL, a.fill)
	fillString(&existing.ConferenceURL, candidate.ConferenceURL, a.fill)

	existing.Tags = unionTags(existing.Tags, candidate.Tags)
}

func (a *Accumulator) insert(candidate talks.Talk) {
	t := candidate
	if t.ID == "" {
		t.ID = talks.Slug(t.Title)
	}
	if t.Type == "" {
		t.Type = talks.TypeTalk
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Events == nil {
		t.Events = []talks.Event{}
	}

	a.talks = append(a.talks, t)

	key := textmatch.Normalize(t.Title)
	if _, ok := a.index[key]; !ok {
		a.index[key] = len(a.talks) - 1
	}
}

func hasEvent(events []talks.Event, ev talks.Event) bool {
	for _, e := range events {
		if e.EventName == ev.EventName && e.Date == ev.Date {
			return true
		}
	}
	return false
}

// fillString applies the fill policy to one nullable scalar.
func fillString(dst **string, src *string, fill FillMode) {
	if src == nil || *src == "" {
		return
	}
	if *dst == nil || **dst == "" || fill == FillOverride {
		*dst = src
	}
}

// unionTags unions two tag lists as a set, preserving first-seen order.
func unionTags(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, lists := range [][]string{existing, extra} {
		for _, tag := range lists {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// speakingAtPrefix marks generic event stubs produced by the Sessionize
// split. A stub exists only to carry its event into the dataset; once a real
// talk owns that event the stub is redundant.
const speakingAtPrefix = "speaking at"

// IsPlaceholderTitle reports whether a talk title is a generic "Speaking at X"
// event stub rather than a real abstract.
func IsPlaceholderTitle(title string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(title)), speakingAtPrefix)
}

// PruneRedundantStubs drops "Speaking at X" placeholder talks whose every
// event already appears, by exact (eventName, date), under a real talk. Stubs
// carrying an event no real talk covers are kept: they are the only trace of
// that engagement.
func PruneRedundantStubs(ts []talks.Talk) []talks.Talk {
	covered := make(map[[2]string]struct{})
	for _, t := range ts {
		if IsPlaceholderTitle(t.Title) {
			continue
		}
		for _, ev := range t.Events {
			covered[[2]string{ev.EventName, ev.Date}] = struct{}{}
		}
	}

	out := ts[:0:0]
	for _, t := range ts {
		if IsPlaceholderTitle(t.Title) && len(t.Events) > 0 && allCovered(t.Events, covered) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func allCovered(events []talks.Event, covered map[[2]string]struct{}) bool {
	for _, ev := range events {
		if _, ok := covered[[2]string{ev.EventName, ev.Date}]; !ok {
			return false
		}
	}
	return true
}

// SourceSummary records one source's contribution to a run.
type SourceSummary struct {
	Source  string `json:"source"`
	Records int    `json:"records"`
	Merged  int    `json:"merged"`
	Added   int    `json:"added"`
	Failed  bool   `json:"failed"`
	Reason  string `json:"reason,omitempty"`
}

// Run folds every source result, in the order given, into a fresh accumulator.
// Failed sources contribute nothing and are reported as warnings, never
// errors: one broken upstream dataset must not block the rest.
func Run(log *slog.Logger, results []sources.Result, policy Policy) ([]talks.Talk, []SourceSummary) {
	acc := NewAccumulator(policy.FillMode)
	summaries := make([]SourceSummary, 0, len(results))

	for _, res := range results {
		summary := SourceSummary{Source: res.Source, Records: len(res.Talks)}
		if res.Failed() {
			summary.Failed = true
			summary.Reason = res.Err.Error()
			log.Warn("source unavailable, contributing zero records",
				slog.String("source", res.Source),
				slog.String("error", res.Err.Error()))
			summaries = append(summaries, summary)
			continue
		}

		for _, t := range res.Talks {
			if t.Title == "" {
				continue
			}
			if acc.AddOrMerge(t) {
				summary.Merged++
			} else {
				summary.Added++
			}
		}
		log.Info("source folded",
			slog.String("source", res.Source),
			slog.Int("records", summary.Records),
			slog.Int("added", summary.Added),
			slog.Int("merged", summary.Merged))
		summaries = append(summaries, summary)
	}

	merged := PruneRedundantStubs(acc.Talks())
	if dropped := len(acc.Talks()) - len(merged); dropped > 0 {
		log.Info("pruned redundant event stubs", slog.Int("dropped", dropped))
	}
	return merged, summaries
}
