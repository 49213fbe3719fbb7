package sources

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jkdev/speaking/internal/talks"
)

// sessionizeDocument covers both shapes the sessionize file can take: the
// pre-normalized export written by `speaking fetch` (talks populated) and the
// raw speaker API payload (sessions + events populated).
type sessionizeDocument struct {
	Talks    []sourceTalk        `json:"talks"`
	Sessions []SessionizeSession `json:"sessions"`
	Events   []SessionizeEvent   `json:"events"`
}

// SessionizeSession is a session record in the raw Sessionize speaker API
// payload.
type SessionizeSession struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	SessionURL  string          `json:"sessionUrl"`
}

// SessionizeEvent is an event record in the raw Sessionize speaker API
// payload.
type SessionizeEvent struct {
	ID             json.RawMessage `json:"id"`
	Name           string          `json:"name"`
	Location       string          `json:"location"`
	EventStartDate string          `json:"eventStartDate"`
	EventEndDate   string          `json:"eventEndDate"`
	Website        string          `json:"website"`
}

// Sessionize reads the Sessionize export. The speaker API does not link a
// session to the events where it was delivered, so the raw payload is split
// into two record shapes: sessions become talk abstracts with no events, and
// each event becomes a "Speaking at X" stub with exactly one event. The merge
// engine recombines them when titles match.
func Sessionize(path string) Result {
	res := Result{Source: SourceSessionize}

	var doc sessionizeDocument
	if err := readJSONFile(path, &doc); err != nil {
		res.Err = err
		return res
	}

	if len(doc.Talks) > 0 {
		for _, st := range doc.Talks {
			if st.Title == "" {
				continue
			}
			res.Talks = append(res.Talks, st.toTalk())
		}
		return res
	}

	res.Talks = SplitSessionizeAPI(doc.Sessions, doc.Events)
	return res
}

// SplitSessionizeAPI maps a raw Sessionize speaker payload to the common talk
// shape. Exported so the fetch command can reuse the exact same mapping when
// it writes the normalized sessionize.json.
func SplitSessionizeAPI(sessions []SessionizeSession, events []SessionizeEvent) []talks.Talk {
	var out []talks.Talk

	for _, s := range sessions {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		talkType := talks.TypeTalk
		if strings.Contains(strings.ToLower(s.Title), "workshop") {
			talkType = talks.TypeWorkshop
		}
		t := talks.Talk{
			ID:          fmt.Sprintf("sessionize-%s", rawIDString(s.ID)),
			Title:       s.Title,
			Description: s.Description,
			Type:        talkType,
		}
		if u := strings.TrimSpace(s.SessionURL); u != "" {
			t.ConferenceURL = &u
		}
		out = append(out, t)
	}

	for _, ev := range events {
		if strings.TrimSpace(ev.Name) == "" {
			continue
		}
		event := talks.Event{
			EventName: ev.Name,
			Location:  ev.Location,
			Date:      isoDateOnly(ev.EventStartDate),
			URL:       ev.Website,
		}
		if end := isoDateOnly(ev.EventEndDate); end != "" && end != event.Date {
			event.DateEnd = end
		}

		t := talks.Talk{
			ID:          fmt.Sprintf("sessionize-event-%s", rawIDString(ev.ID)),
			Title:       fmt.Sprintf("Speaking at %s", ev.Name),
			Description: fmt.Sprintf("Presented at %s", ev.Name),
			Type:        talks.TypeTalk,
			Events:      []talks.Event{event},
		}
		if u := strings.TrimSpace(ev.Website); u != "" {
			t.ConferenceURL = &u
		}
		out = append(out, t)
	}

	return out
}

// isoDateOnly trims an ISO timestamp to its date part.
func isoDateOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return strings.TrimSpace(s)
	}
	return s
}

// rawIDString renders a Sessionize id, which the API serves either as a
// number or a string, without quotes.
func rawIDString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	return strings.Trim(s, `"`)
}
