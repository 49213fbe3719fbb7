package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jkdev/speaking/internal/talks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDataset(t *testing.T, ts []talks.Talk) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speaking.json")
	if err := talks.SaveDocument(path, &talks.Document{Talks: ts}); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func testDataset() []talks.Talk {
	return []talks.Talk{
		{
			ID: "future-talk", Title: "Future Talk", Type: "talk",
			Events: []talks.Event{
				{EventName: "NDC Oslo", Date: "2999-06-01", Status: talks.StatusUpcoming},
			},
		},
		{
			ID: "mixed-talk", Title: "Mixed Talk", Type: "talk",
			Events: []talks.Event{
				{EventName: "NDC Sydney", Date: "2999-03-01", Status: talks.StatusUpcoming},
				{EventName: "DDD Brisbane", Date: "2020-12-05", Status: talks.StatusPast},
			},
		},
		{
			ID: "old-talk", Title: "Old Talk", Type: "talk",
			Events: []talks.Event{
				{EventName: "DDD Melbourne", Date: "2019-08-10", Status: talks.StatusPast},
			},
		},
	}
}

func getJSON(t *testing.T, s *Server, url string, out any) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", url, err)
	}
	if out != nil && resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("parse body: %v", err)
		}
	}
	return resp
}

func TestSpeakingListAll(t *testing.T) {
	s := NewServer(discardLogger(), writeDataset(t, testDataset()))

	var got speakingResponse
	resp := getJSON(t, s, "/api/speaking", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if got.Count != 3 || got.Total != 3 || len(got.Talks) != 3 {
		t.Errorf("unexpected counts: count=%d total=%d talks=%d", got.Count, got.Total, len(got.Talks))
	}
}

func TestSpeakingFilterUpcoming(t *testing.T) {
	s := NewServer(discardLogger(), writeDataset(t, testDataset()))

	var got speakingResponse
	getJSON(t, s, "/api/speaking?status=upcoming", &got)
	if got.Count != 2 {
		t.Fatalf("expected 2 upcoming talks, got %d", got.Count)
	}
	for _, talk := range got.Talks {
		if talk.ID == "old-talk" {
			t.Error("past-only talk returned as upcoming")
		}
	}
	if got.Total != 3 {
		t.Errorf("total must count the unfiltered dataset, got %d", got.Total)
	}
}

func TestSpeakingFilterPastExcludesMixed(t *testing.T) {
	s := NewServer(discardLogger(), writeDataset(t, testDataset()))

	var got speakingResponse
	getJSON(t, s, "/api/speaking?status=past", &got)
	if got.Count != 1 || got.Talks[0].ID != "old-talk" {
		t.Fatalf("expected only the fully-past talk, got %+v", got.Talks)
	}
}

func TestSpeakingLimit(t *testing.T) {
	s := NewServer(discardLogger(), writeDataset(t, testDataset()))

	var got speakingResponse
	getJSON(t, s, "/api/speaking?limit=1", &got)
	if got.Count != 1 || got.Total != 3 {
		t.Errorf("limit not applied: count=%d total=%d", got.Count, got.Total)
	}
}

func TestSpeakingBadParams(t *testing.T) {
	s := NewServer(discardLogger(), writeDataset(t, testDataset()))

	if resp := getJSON(t, s, "/api/speaking?status=maybe", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid status: expected 400, got %d", resp.StatusCode)
	}
	if resp := getJSON(t, s, "/api/speaking?limit=0", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid limit: expected 400, got %d", resp.StatusCode)
	}
}

func TestSpeakingMissingDataset(t *testing.T) {
	s := NewServer(discardLogger(), filepath.Join(t.TempDir(), "missing.json"))

	if resp := getJSON(t, s, "/api/speaking", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for missing dataset, got %d", resp.StatusCode)
	}
}

func TestNextUpcoming(t *testing.T) {
	s := NewServer(discardLogger(), writeDataset(t, testDataset()))
	s.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

	var got nextResponse
	getJSON(t, s, "/api/speaking/next", &got)
	if got.Next == nil {
		t.Fatal("expected a next engagement")
	}
	// The mixed talk's 2999-03-01 event is the earliest qualifying date.
	if got.Next.Talk.ID != "mixed-talk" || got.Next.Event.Date != "2999-03-01" {
		t.Errorf("unexpected next engagement: %+v", got.Next)
	}
}

func TestNextUpcomingNoneScheduled(t *testing.T) {
	past := []talks.Talk{
		{
			ID: "old-talk", Title: "Old Talk", Type: "talk",
			Events: []talks.Event{
				{EventName: "DDD Melbourne", Date: "2019-08-10", Status: talks.StatusPast},
			},
		},
	}
	s := NewServer(discardLogger(), writeDataset(t, past))
	s.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }

	var got nextResponse
	getJSON(t, s, "/api/speaking/next", &got)
	if got.Next != nil {
		t.Errorf("expected null next, got %+v", got.Next)
	}
}
