package talks

import (
	"strings"
	"time"
)

// Event statuses. Status is always derived from the event date at enrichment
// time; values arriving from source documents are overwritten.
const (
	StatusUpcoming = "upcoming"
	StatusPast     = "past"
)

// Talk types.
const (
	TypeTalk     = "talk"
	TypeWorkshop = "workshop"
)

// Event is one concrete delivery of a talk (date + venue). Events are owned by
// their talk and have no identity of their own; two events are the same iff
// eventName and date are textually equal.
type Event struct {
	EventName string `json:"eventName"`
	Location  string `json:"location,omitempty"`
	Date      string `json:"date,omitempty"`
	DateEnd   string `json:"dateEnd,omitempty"`
	URL       string `json:"url,omitempty"`
	Online    *bool  `json:"online,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Talk is a distinct presentation/abstract, possibly delivered multiple times.
// Link fields are pointers so that "absent" and "empty" stay distinguishable
// for the fill-if-null merge policy.
type Talk struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	GroupName     *string  `json:"groupName"`
	Events        []Event  `json:"events"`
	Tags          []string `json:"tags"`
	VideoURL      *string  `json:"videoUrl"`
	SlidesURL     *string  `json:"slidesUrl"`
	GithubURL     *string  `json:"githubUrl"`
	ConferenceURL *string  `json:"conferenceUrl"`
}

// HasVideo reports whether the talk already carries a video link.
func (t *Talk) HasVideo() bool {
	return t.VideoURL != nil && *t.VideoURL != ""
}

// FirstEventName returns the name of the talk's first (most recent) event, or
// empty when the talk has none.
func (t *Talk) FirstEventName() string {
	if len(t.Events) == 0 {
		return ""
	}
	return t.Events[0].EventName
}

// Slug derives a stable talk id from a title: lowercased alphanumeric runs
// joined by hyphens.
func Slug(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// dateLayouts are the formats source documents use for event dates. The first
// is the canonical one.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate parses an event date string. The second return is false when the
// value is empty or unparseable; callers treat such dates as epoch for sorting
// and never fail on them.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StatusFor derives an event status from its date string. An event is past iff
// its date is strictly before the start of the current day; an event dated
// exactly at day start is upcoming. Unparseable dates sort to epoch and are
// therefore past.
func StatusFor(date string, now time.Time) string {
	d, ok := ParseDate(date)
	if !ok {
		return StatusPast
	}
	if d.Before(StartOfDay(now)) {
		return StatusPast
	}
	return StatusUpcoming
}

// SortKey returns the moment used when ordering events and talks by date.
// Missing and unparseable dates collapse to epoch so they sort last in a
// descending order without ever failing the run.
func SortKey(date string) time.Time {
	d, ok := ParseDate(date)
	if !ok {
		return time.Unix(0, 0).UTC()
	}
	return d
}

// Upcoming is the "next upcoming" candidate returned by FindNextUpcomingTalk.
type Upcoming struct {
	Talk  Talk  `json:"talk"`
	Event Event `json:"event"`
}

// FindNextUpcomingTalk selects, among all events that are marked upcoming or
// dated today/future, the one with the earliest date. Events without a
// parseable date cannot be asserted upcoming and are skipped. Returns nil when
// nothing qualifies.
func FindNextUpcomingTalk(ts []Talk, now time.Time) *Upcoming {
	dayStart := StartOfDay(now)

	var best *Upcoming
	var bestDate time.Time
	for _, talk := range ts {
		for _, ev := range talk.Events {
			d, ok := ParseDate(ev.Date)
			if !ok {
				continue
			}
			if ev.Status != StatusUpcoming && d.Before(dayStart) {
				continue
			}
			if best == nil || d.Before(bestDate) {
				best = &Upcoming{Talk: talk, Event: ev}
				bestDate = d
			}
		}
	}
	return best
}
