// Package enrich is the post-merge validation pass: it guarantees required
// fields, derives grouping, recomputes temporal status against the current
// date and establishes the final sort order. Every step is independent and
// idempotent, so re-running enrichment with the same clock is a no-op.
package enrich

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jkdev/speaking/internal/talks"
)

// Talks enriches a merged talk list in place and returns the persistable
// subset. now is injected so runs are reproducible under test.
func Talks(log *slog.Logger, ts []talks.Talk, now time.Time) []talks.Talk {
	for i := range ts {
		enrichTalk(log, &ts[i], now)
	}

	// Talks with zero events are not persisted; a talk only exists in the
	// dataset through its deliveries.
	kept := ts[:0:0]
	dropped := 0
	for _, t := range ts {
		if len(t.Events) == 0 {
			dropped++
			continue
		}
		kept = append(kept, t)
	}
	if dropped > 0 {
		log.Info("dropped talks without events", slog.Int("dropped", dropped))
	}

	// Sort the talk list by each talk's most recent event date, newest
	// first. Events are already sorted descending, so index 0 is the key;
	// unparseable dates collapsed to epoch keep such talks at the bottom
	// without failing the run.
	sort.SliceStable(kept, func(i, j int) bool {
		return talks.SortKey(kept[i].Events[0].Date).After(talks.SortKey(kept[j].Events[0].Date))
	})

	return kept
}

func enrichTalk(log *slog.Logger, t *talks.Talk, now time.Time) {
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

	// groupName is always recomputed, never trusted from input: non-null iff
	// the talk has more than one delivery.
	if len(t.Events) > 1 {
		group := fmt.Sprintf("%s-group", t.ID)
		t.GroupName = &group
	} else {
		t.GroupName = nil
	}

	// Newest delivery first.
	sort.SliceStable(t.Events, func(i, j int) bool {
		return talks.SortKey(t.Events[i].Date).After(talks.SortKey(t.Events[j].Date))
	})

	for i := range t.Events {
		ev := &t.Events[i]
		if _, ok := talks.ParseDate(ev.Date); !ok && ev.Date != "" {
			log.Warn("unparseable event date, treating as epoch",
				slog.String("talk", t.ID),
				slog.String("eventName", ev.EventName),
				slog.String("date", ev.Date))
		}
		ev.Status = talks.StatusFor(ev.Date, now)
	}
}
