package sources

import (
	"strings"

	"github.com/jkdev/speaking/internal/talks"
)

// gdprDeleted marks rows the MVP privacy export has redacted; they carry no
// usable content and are skipped.
const gdprDeleted = "[GDPR Delete]"

// mvpActivity is the older MVP export shape: flat activities without event
// detail. Newer exports carry talk-shaped records under the same keys.
type mvpActivity struct {
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	URL                 *string       `json:"url"`
	TechnologyFocusArea string        `json:"technologyFocusArea"`
	Events              []sourceEvent `json:"events"`

	// Present only on talk-shaped records.
	Tags          []string `json:"tags"`
	Type          string   `json:"type"`
	VideoURL      *string  `json:"videoUrl"`
	SlidesURL     *string  `json:"slidesUrl"`
	GithubURL     *string  `json:"githubUrl"`
	ConferenceURL *string  `json:"conferenceUrl"`
}

// MVP reads the MVP contributions export. Records that already match the talk
// shape pass through; old-format activities are converted: the focus area
// becomes a tag and the activity URL becomes either videoUrl (YouTube links)
// or conferenceUrl.
func MVP(path string) Result {
	res := Result{Source: SourceMVP}

	var doc struct {
		Contributions []mvpActivity `json:"contributions"`
		Activities    []mvpActivity `json:"activities"`
	}
	if err := readJSONFile(path, &doc); err != nil {
		res.Err = err
		return res
	}

	items := doc.Contributions
	if len(items) == 0 {
		items = doc.Activities
	}

	for _, a := range items {
		if a.Title == "" || a.Title == gdprDeleted || a.Description == gdprDeleted {
			continue
		}

		if len(a.Events) > 0 {
			st := sourceTalk{
				Title:         a.Title,
				Description:   a.Description,
				Type:          a.Type,
				Events:        a.Events,
				Tags:          a.Tags,
				VideoURL:      a.VideoURL,
				SlidesURL:     a.SlidesURL,
				GithubURL:     a.GithubURL,
				ConferenceURL: a.ConferenceURL,
			}
			res.Talks = append(res.Talks, st.toTalk())
			continue
		}

		t := talks.Talk{
			Title:       a.Title,
			Description: a.Description,
		}
		if a.TechnologyFocusArea != "" {
			t.Tags = []string{a.TechnologyFocusArea}
		}
		if url := cleanURL(a.URL); url != nil {
			if strings.Contains(*url, "youtube") {
				t.VideoURL = url
			} else {
				t.ConferenceURL = url
			}
		}
		res.Talks = append(res.Talks, t)
	}
	return res
}

func cleanURL(u *string) *string {
	if u == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*u)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
