// Package fetchsrc produces the on-disk source files the merge consumes: the
// normalized Sessionize export and the distilled MVP contributions file.
package fetchsrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jkdev/speaking/internal/sources"
	"github.com/jkdev/speaking/internal/talks"
)

// sessionizePayload is the raw speaker API response.
type sessionizePayload struct {
	Sessions []sources.SessionizeSession `json:"sessions"`
	Events   []sources.SessionizeEvent   `json:"events"`
}

// SessionizeExport is the normalized file written for the merge. The merge
// only reads talks; the remaining fields document the fetch for humans
// inspecting the data directory.
type SessionizeExport struct {
	Source      string       `json:"source"`
	FetchedDate time.Time    `json:"fetchedDate"`
	TotalTalks  int          `json:"totalTalks"`
	Talks       []talks.Talk `json:"talks"`
	Error       string       `json:"error,omitempty"`
}

// Fetcher downloads the Sessionize speaker payload with bounded retries.
type Fetcher struct {
	log     *slog.Logger
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewFetcher builds a fetcher. retries counts attempts after the first; zero
// means a single attempt.
func NewFetcher(log *slog.Logger, timeout time.Duration, retries int) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Fetcher{
		log:     log,
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: 2 * time.Second,
	}
}

// Sessionize fetches the speaker payload from url and maps it to the common
// talk shape.
func (f *Fetcher) Sessionize(ctx context.Context, url string) ([]talks.Talk, error) {
	if url == "" {
		return nil, fmt.Errorf("sessionize url is empty")
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			f.log.Warn("retrying sessionize fetch",
				"attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff * time.Duration(attempt)):
			}
		}

		payload, err := f.fetchOnce(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		ts := sources.SplitSessionizeAPI(payload.Sessions, payload.Events)
		f.log.Info("fetched sessionize data",
			"sessions", len(payload.Sessions),
			"events", len(payload.Events),
			"talks", len(ts))
		return ts, nil
	}
	return nil, fmt.Errorf("fetch sessionize: %w", lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*sessionizePayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var payload sessionizePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &payload, nil
}

// SessionizeToFile fetches and writes the normalized export. A failed fetch
// still writes an empty but valid export so the merge degrades to the
// remaining sources instead of failing; it is reported as fetchErr for
// logging. A failed write is returned separately as writeErr and means no
// usable export exists on disk.
func (f *Fetcher) SessionizeToFile(ctx context.Context, url, path string) (fetchErr, writeErr error) {
	ts, fetchErr := f.Sessionize(ctx, url)

	export := SessionizeExport{
		Source:      "Sessionize API",
		FetchedDate: time.Now().UTC(),
		TotalTalks:  len(ts),
		Talks:       ts,
	}
	if ts == nil {
		export.Talks = []talks.Talk{}
	}
	if fetchErr != nil {
		export.Source = "Sessionize API (fetch failed)"
		export.Error = fetchErr.Error()
		f.log.Warn("writing empty sessionize export after failed fetch",
			"path", path, "error", fetchErr)
	}

	if err := talks.WriteJSONFile(path, &export); err != nil {
		return fetchErr, fmt.Errorf("write sessionize export: %w", err)
	}
	return fetchErr, nil
}
