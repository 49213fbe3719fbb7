package fetchsrc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jkdev/speaking/internal/talks"
)

// speakingActivityTypes selects the MVP activity types that represent actual
// speaking engagements; everything else in the export (blogging, open source,
// forum activity) is out of scope.
var speakingActivityTypes = []string{
	"Speaker/Presenter at Third-party event",
	"Speaker/Presenter at Microsoft Event",
	"Speaker/Presenter for Event",
	"Workshop/Volunteer/Proctor",
	"Mentorship/Coaching",
}

const gdprDeleted = "[GDPR Delete]"

// mvpExport is the relevant slice of the MVP Account Privacy Data file.
type mvpExport struct {
	MostValuableProfessionalProgram struct {
		Activities []mvpRawActivity `json:"activities"`
	} `json:"mostValuableProfessionalProgram"`
}

// mvpRawActivity is one activity row in the privacy export. isHighImpact is
// serialized as the string "True"/"False" in older exports and as a bool in
// newer ones.
type mvpRawActivity struct {
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	URL                 string          `json:"url"`
	DateCreated         string          `json:"dateCreated"`
	TechnologyFocusArea string          `json:"technologyFocusArea"`
	ActivityTypeName    string          `json:"activityTypeName"`
	TargetAudience      []string        `json:"targetAudience"`
	IsHighImpact        json.RawMessage `json:"isHighImpact"`
	AnnualReach         int             `json:"annualReach"`
}

// Activity is one distilled, public-safe speaking activity.
type Activity struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	URL                 *string  `json:"url"`
	DateCreated         *string  `json:"dateCreated"`
	TechnologyFocusArea *string  `json:"technologyFocusArea"`
	ActivityType        *string  `json:"activityType"`
	TargetAudience      []string `json:"targetAudience"`
	IsHighImpact        bool     `json:"isHighImpact"`
	AnnualReach         int      `json:"annualReach"`
}

// MVPExtract is the distilled contributions file consumed by the merge.
type MVPExtract struct {
	Source          string     `json:"source"`
	ExtractedDate   time.Time  `json:"extractedDate"`
	TotalActivities int        `json:"totalActivities"`
	Activities      []Activity `json:"activities"`
}

// ExtractMVP reads the MVP Account Privacy Data export, keeps only speaking
// activities that survived GDPR redaction, and writes the distilled file. The
// privacy export itself stays out of the repository; only the distilled,
// public-safe subset is persisted.
func ExtractMVP(log *slog.Logger, exportPath, outPath string) (*MVPExtract, error) {
	if log == nil {
		log = slog.Default()
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		return nil, fmt.Errorf("read mvp export: %w", err)
	}
	var export mvpExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse mvp export: %w", err)
	}

	activities := distillActivities(export.MostValuableProfessionalProgram.Activities)

	out := &MVPExtract{
		Source:          "MVP Account Privacy Data",
		ExtractedDate:   time.Now().UTC(),
		TotalActivities: len(activities),
		Activities:      activities,
	}
	if err := talks.WriteJSONFile(outPath, out); err != nil {
		return nil, err
	}

	log.Info("extracted mvp speaking activities",
		"total", len(activities), "path", outPath)
	return out, nil
}

func distillActivities(raw []mvpRawActivity) []Activity {
	out := []Activity{}
	for _, a := range raw {
		if a.Title == gdprDeleted || a.Description == gdprDeleted {
			continue
		}
		if !isSpeakingActivity(a.ActivityTypeName) {
			continue
		}
		act := Activity{
			Title:               a.Title,
			Description:         a.Description,
			URL:                 optionalString(a.URL),
			DateCreated:         optionalString(a.DateCreated),
			TechnologyFocusArea: optionalString(a.TechnologyFocusArea),
			ActivityType:        optionalString(a.ActivityTypeName),
			TargetAudience:      a.TargetAudience,
			IsHighImpact:        truthy(a.IsHighImpact),
			AnnualReach:         a.AnnualReach,
		}
		if act.TargetAudience == nil {
			act.TargetAudience = []string{}
		}
		out = append(out, act)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return activityTime(out[i]).After(activityTime(out[j]))
	})
	return out
}

func isSpeakingActivity(typeName string) bool {
	for _, t := range speakingActivityTypes {
		if strings.Contains(typeName, t) {
			return true
		}
	}
	return false
}

func activityTime(a Activity) time.Time {
	if a.DateCreated == nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *a.DateCreated); err == nil {
			return t
		}
	}
	return time.Time{}
}

// optionalString drops empty and whitespace-only values; the export pads some
// url fields with a single space.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// truthy accepts the export's bool-or-"True" encoding.
func truthy(raw json.RawMessage) bool {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return strings.EqualFold(s, "true")
}
