package videomatch

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jkdev/speaking/internal/talks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mlTalk() talks.Talk {
	return talks.Talk{
		ID:    "machine-learning-with-mlnet",
		Title: "Machine Learning with ML.NET",
		Events: []talks.Event{
			{EventName: "NDC Sydney", Date: "2019-10-17"},
		},
	}
}

func TestStrongCandidateIsApplied(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{mlTalk()}
	cands := []Candidate{{
		ID:      "vid-1",
		Title:   "Machine Learning with ML.NET - Jernej Kavka - NDC Sydney 2019",
		URL:     "https://youtu.be/vid-1",
		Channel: "NDC Conferences",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.AppliedMatches) != 1 {
		t.Fatalf("expected 1 applied match, got %d", len(report.AppliedMatches))
	}
	if ts[0].VideoURL == nil || *ts[0].VideoURL != "https://youtu.be/vid-1" {
		t.Errorf("expected video url written to the talk, got %v", ts[0].VideoURL)
	}
	m := report.AppliedMatches[0]
	if m.TalkID != "machine-learning-with-mlnet" || m.VideoID != "vid-1" {
		t.Errorf("unexpected match pairing: %+v", m)
	}
}

func TestMidScoreCandidateIsSuggestedOnly(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{mlTalk()}
	cands := []Candidate{{
		ID:    "vid-2",
		Title: "Jernej Kavka on machine learning",
		URL:   "https://youtu.be/vid-2",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.AppliedMatches) != 0 {
		t.Fatalf("expected no applied matches, got %d", len(report.AppliedMatches))
	}
	if len(report.SuggestedMatches) != 1 {
		t.Fatalf("expected 1 suggested match, got %d", len(report.SuggestedMatches))
	}
	if ts[0].VideoURL != nil {
		t.Errorf("suggestion must not mutate the talk, got %v", *ts[0].VideoURL)
	}
}

// The apply threshold is inclusive: a score exactly at the cutoff qualifies,
// one just below it does not. Overlaps here are exact halves so the score
// arithmetic is reproducible.
func TestApplyThresholdIsInclusive(t *testing.T) {
	// "Jernej Kavka on machine learning" tokenizes to 4 tokens, 2 shared
	// with the 3 talk tokens: both overlaps are exactly 0.5.
	score := weightTitleOverlap*0.5 + weightTopicOverlap*0.5
	score += bonusAuthorMention

	cand := Candidate{
		ID:    "vid-3",
		Title: "Jernej Kavka on machine learning",
		URL:   "https://youtu.be/vid-3",
	}

	atCutoff := Policy{
		AutoApplyScore:    score,
		TopicOverlapFloor: 0.5,
		SuggestFloor:      0.3,
	}
	ts := []talks.Talk{mlTalk()}
	report, err := NewReconciler(discardLogger(), atCutoff).Run("youtube", ts, []Candidate{cand})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.AppliedMatches) != 1 {
		t.Fatalf("score equal to the cutoff must apply, got %d applied", len(report.AppliedMatches))
	}

	aboveCutoff := atCutoff
	aboveCutoff.AutoApplyScore = score + 1e-9
	ts = []talks.Talk{mlTalk()}
	report, err = NewReconciler(discardLogger(), aboveCutoff).Run("youtube", ts, []Candidate{cand})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.AppliedMatches) != 0 {
		t.Fatalf("score below the cutoff must not apply, got %d applied", len(report.AppliedMatches))
	}
	if len(report.SuggestedMatches) != 1 {
		t.Fatalf("score below the cutoff should still be suggested, got %d", len(report.SuggestedMatches))
	}
}

func TestPlaceholderTalkNeverAutoApplies(t *testing.T) {
	// Thresholds lowered so only the placeholder guard can stop the apply.
	policy := Policy{
		AutoApplyScore:    0.01,
		TopicOverlapFloor: -1,
		SuggestFloor:      0.01,
	}
	r := NewReconciler(discardLogger(), policy)
	ts := []talks.Talk{{
		ID:    "speaking-at-ndc-sydney",
		Title: "Speaking at NDC Sydney",
		Events: []talks.Event{
			{EventName: "NDC", Date: "2019-10-17"},
		},
	}}
	cands := []Candidate{{
		ID:    "vid-4",
		Title: "Sydney Kavka",
		URL:   "https://youtu.be/vid-4",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.AppliedMatches) != 0 {
		t.Fatal("an event-stub talk must never receive an auto-applied video")
	}
	if len(report.SuggestedMatches) != 1 {
		t.Fatalf("expected the match to surface as a suggestion, got %d", len(report.SuggestedMatches))
	}
	if ts[0].VideoURL != nil {
		t.Errorf("talk must stay unmatched, got %v", *ts[0].VideoURL)
	}
}

func TestGenericConferenceUploadIsPenalized(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{mlTalk()}
	cands := []Candidate{{
		ID:      "vid-5",
		Title:   "NDC Sydney 2019",
		URL:     "https://youtu.be/vid-5",
		Channel: "Jernej Kavka",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Event substring and author bonuses alone cannot outweigh the penalty;
	// a bare conference-name upload stays below the suggestion floor.
	if len(report.AppliedMatches) != 0 || len(report.SuggestedMatches) != 0 {
		t.Fatalf("generic upload must not match, got applied=%d suggested=%d",
			len(report.AppliedMatches), len(report.SuggestedMatches))
	}
	if ts[0].VideoURL != nil {
		t.Errorf("talk must stay unmatched, got %v", *ts[0].VideoURL)
	}
}

// One recording may describe several talks (a combined session upload); each
// video-less talk independently gets its best candidate.
func TestSharedRecordingSurfacesForEachTalk(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	other := talks.Talk{
		ID:    "machine-learning-in-production",
		Title: "Machine Learning in Production",
		Events: []talks.Event{
			{EventName: "DDD Brisbane", Date: "2020-12-05"},
		},
	}
	ts := []talks.Talk{mlTalk(), other}
	cands := []Candidate{{
		ID:    "vid-6",
		Title: "Jernej Kavka on machine learning",
		URL:   "https://youtu.be/vid-6",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.SuggestedMatches) != 2 {
		t.Fatalf("expected the recording suggested for both talks, got %d", len(report.SuggestedMatches))
	}
	seen := make(map[string]bool)
	for _, m := range report.SuggestedMatches {
		if m.VideoID != "vid-6" {
			t.Errorf("unexpected video in suggestion: %+v", m)
		}
		seen[m.TalkID] = true
	}
	if !seen["machine-learning-with-mlnet"] || !seen["machine-learning-in-production"] {
		t.Errorf("expected one suggestion per talk, got %v", seen)
	}
}

// Bare year tokens in a talk title carry no topical signal and must not
// dilute the overlap denominators.
func TestYearTokensIgnoredInTalkTitles(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{{
		ID:    "source-generators-2021",
		Title: "Source Generators 2021",
		Events: []talks.Event{
			{EventName: "NDC Oslo", Date: "2021-06-10"},
		},
	}}
	cands := []Candidate{{
		ID:    "vid-7",
		Title: "Kavka on generators",
		URL:   "https://youtu.be/vid-7",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// With the year dropped both overlaps are 1/2; counting it they fall to
	// 1/3 and the score lands below the suggestion floor.
	if len(report.SuggestedMatches) != 1 {
		t.Fatalf("expected 1 suggested match, got %d", len(report.SuggestedMatches))
	}
}

// Only the most recent event describes where a recording would come from;
// older venue names must not erode the talk's topic tokens.
func TestOlderEventNamesDoNotErodeTopicTokens(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{{
		ID:    "machine-learning-with-mlnet",
		Title: "Machine Learning with ML.NET",
		Events: []talks.Event{
			{EventName: "DDD Brisbane", Date: "2020-12-05"},
			{EventName: "Machine Learning Conference", Date: "2019-01-01"},
		},
	}}
	cands := []Candidate{{
		ID:    "vid-8",
		Title: "Jernej Kavka on machine learning",
		URL:   "https://youtu.be/vid-8",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.SuggestedMatches) != 1 {
		t.Fatalf("expected 1 suggested match, got %d", len(report.SuggestedMatches))
	}
	// Subtracting the historical "Machine Learning Conference" tokens would
	// leave no topic overlap at all.
	if got := report.SuggestedMatches[0].TopicOverlap; got != 0.5 {
		t.Errorf("expected topic overlap 0.5 against the title tokens, got %v", got)
	}
}

func TestTalksWithVideoAreNotRescored(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	existing := "https://youtu.be/already"
	talk := mlTalk()
	talk.VideoURL = &existing
	ts := []talks.Talk{talk}
	cands := []Candidate{{
		ID:      "vid-9",
		Title:   "Machine Learning with ML.NET - Jernej Kavka - NDC Sydney 2019",
		URL:     "https://youtu.be/vid-9",
		Channel: "NDC Conferences",
	}}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.AppliedMatches) != 0 || len(report.SuggestedMatches) != 0 {
		t.Fatal("talks that already carry a video must not be rescored")
	}
	if *ts[0].VideoURL != existing {
		t.Errorf("existing video url overwritten: %s", *ts[0].VideoURL)
	}
}

func TestMissingCandidateDetection(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{mlTalk()}
	cands := []Candidate{
		// Author mention plus conference vocabulary: confident enough.
		{ID: "vid-10", Title: "Jernej Kavka - Offline AI session at DDD Melbourne", URL: "https://youtu.be/vid-10"},
		// Author mention alone stays below the confidence floor.
		{ID: "vid-11", Title: "Jernej Kavka vlog", URL: "https://youtu.be/vid-11"},
		// No author mention: never a missing candidate.
		{ID: "vid-12", Title: "Some conference keynote", URL: "https://youtu.be/vid-12"},
		// Event vocabulary carried by the uploader, not the title.
		{ID: "vid-13", Title: "Jernej Kavka live coding", URL: "https://youtu.be/vid-13", Channel: "NDC Conferences"},
	}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	ids := make(map[string]bool)
	for _, mc := range report.MissingTalkCandidates {
		ids[mc.VideoID] = true
	}
	if !ids["vid-10"] {
		t.Error("expected vid-10 flagged as a missing talk candidate")
	}
	if ids["vid-11"] {
		t.Error("author mention alone must not clear the confidence floor")
	}
	if ids["vid-12"] {
		t.Error("videos without an author mention must not be flagged")
	}
	if !ids["vid-13"] {
		t.Error("uploader text must contribute event vocabulary")
	}
}

func TestCandidatesDedupedByID(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	ts := []talks.Talk{mlTalk()}
	cands := []Candidate{
		{ID: "vid-14", Title: "Jernej Kavka on machine learning", URL: "https://youtu.be/vid-14"},
		{ID: "vid-14", Title: "Jernej Kavka on machine learning", URL: "https://youtu.be/vid-14"},
	}

	report, err := r.Run("youtube", ts, cands)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.TotalVideosScanned != 1 {
		t.Errorf("expected duplicates collapsed, scanned=%d", report.TotalVideosScanned)
	}
	if len(report.SuggestedMatches) != 1 {
		t.Errorf("expected a single suggestion, got %d", len(report.SuggestedMatches))
	}
}

func TestRunRequiresTalks(t *testing.T) {
	r := NewReconciler(discardLogger(), DefaultPolicy(""))
	if _, err := r.Run("youtube", nil, nil); err == nil {
		t.Fatal("expected an error when no talks are loaded")
	}
}

func TestRoundingHalvesAwayFromZero(t *testing.T) {
	if got := round2(0.346); got != 0.35 {
		t.Errorf("round2(0.346) = %v, want 0.35", got)
	}
	if got := round2(-0.346); got != -0.35 {
		t.Errorf("round2(-0.346) = %v, want -0.35", got)
	}
}
