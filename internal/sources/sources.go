// Package sources normalizes the heterogeneous source documents (legacy
// archive, Sessionize export, MVP activity export, manual curation file) into
// the common Talk shape. Adapters are pure: raw document in, partial talks
// out. A missing or malformed source degrades to an empty contribution so one
// broken upstream dataset never blocks the rest of the pipeline.
package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jkdev/speaking/internal/talks"
)

// Source names, in default priority order.
const (
	SourceLegacy     = "legacy"
	SourceSessionize = "sessionize"
	SourceMVP        = "mvp"
	SourceManual     = "manual"
)

// Result is one adapter's contribution. A soft failure carries Err and zero
// talks; the fold over sources treats it as an empty contribution instead of
// aborting.
type Result struct {
	Source string
	Talks  []talks.Talk
	Err    error
}

// Failed reports whether the source could not be loaded.
func (r Result) Failed() bool { return r.Err != nil }

// Load runs the adapter for the named source against the given file.
func Load(source, path string) Result {
	switch source {
	case SourceLegacy:
		return Legacy(path)
	case SourceSessionize:
		return Sessionize(path)
	case SourceMVP:
		return MVP(path)
	case SourceManual:
		return Manual(path)
	default:
		return Result{Source: source, Err: fmt.Errorf("unknown source %q", source)}
	}
}

// LoadAll runs every adapter in the given order. Paths maps source name to
// file path; sources without a path contribute a failed Result.
func LoadAll(order []string, paths map[string]string) []Result {
	results := make([]Result, 0, len(order))
	for _, source := range order {
		path, ok := paths[source]
		if !ok || path == "" {
			results = append(results, Result{Source: source, Err: fmt.Errorf("no path configured for source %q", source)})
			continue
		}
		results = append(results, Load(source, path))
	}
	return results
}

// sourceTalk is the loosely-typed talk record as it appears in source
// documents. It is validated and converted to talks.Talk at this boundary;
// raw records never cross into the merge engine.
type sourceTalk struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Type          string        `json:"type"`
	Events        []sourceEvent `json:"events"`
	Tags          []string      `json:"tags"`
	VideoURL      *string       `json:"videoUrl"`
	SlidesURL     *string       `json:"slidesUrl"`
	GithubURL     *string       `json:"githubUrl"`
	ConferenceURL *string       `json:"conferenceUrl"`
}

type sourceEvent struct {
	EventName string `json:"eventName"`
	Location  string `json:"location"`
	Date      string `json:"date"`
	DateEnd   string `json:"dateEnd"`
	URL       string `json:"url"`
	Online    *bool  `json:"online"`
	Status    string `json:"status"`
}

func (st sourceTalk) toTalk() talks.Talk {
	t := talks.Talk{
		ID:            st.ID,
		Title:         strings.TrimSpace(st.Title),
		Description:   st.Description,
		Type:          st.Type,
		Tags:          st.Tags,
		VideoURL:      emptyToNil(st.VideoURL),
		SlidesURL:     emptyToNil(st.SlidesURL),
		GithubURL:     emptyToNil(st.GithubURL),
		ConferenceURL: emptyToNil(st.ConferenceURL),
	}
	for _, ev := range st.Events {
		if strings.TrimSpace(ev.EventName) == "" {
			continue
		}
		t.Events = append(t.Events, talks.Event{
			EventName: ev.EventName,
			Location:  ev.Location,
			Date:      ev.Date,
			DateEnd:   ev.DateEnd,
			URL:       ev.URL,
			Online:    ev.Online,
			Status:    ev.Status,
		})
	}
	return t
}

// emptyToNil keeps the absent-vs-empty distinction honest: sources that emit
// "" for a link mean "no value", and downstream fill-if-null logic depends on
// that being nil.
func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
