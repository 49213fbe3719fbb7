// Package history keeps an audit trail of pipeline runs in a local SQLite
// database: per-source contribution counts and every automatically applied
// video match.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jkdev/speaking/internal/merge"
	"github.com/jkdev/speaking/internal/videomatch"
)

//go:embed schema.sql
var schemaSQL string

// Run statuses.
const (
	statusRunning = "running"
	statusOK      = "ok"
	statusFailed  = "failed"
)

// Store records pipeline runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is empty")
	}

	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun opens a run record and returns its id.
func (s *Store) BeginRun(ctx context.Context, command string) (string, error) {
	runID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, command, started_at, status)
		VALUES (?, ?, ?, ?)
	`, runID, command, now, statusRunning)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// FinishRun closes a run record. A non-nil runErr marks the run failed and
// stores the error text.
func (s *Store) FinishRun(ctx context.Context, runID string, totalTalks int, runErr error) error {
	now := time.Now().UTC().Format(time.RFC3339)
	status := statusOK
	var errText sql.NullString
	if runErr != nil {
		status = statusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET finished_at = ?, status = ?, total_talks = ?, error = ?
		WHERE id = ?
	`, now, status, totalTalks, errText, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordSources stores per-source contribution counts for a run.
func (s *Store) RecordSources(ctx context.Context, runID string, summaries []merge.SourceSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record sources: %w", err)
	}
	defer tx.Rollback()

	for _, sum := range summaries {
		failed := 0
		if sum.Failed {
			failed = 1
		}
		var reason sql.NullString
		if sum.Reason != "" {
			reason = sql.NullString{String: sum.Reason, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO source_contributions (id, run_id, source, records, merged, added, failed, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), runID, sum.Source, sum.Records, sum.Merged, sum.Added, failed, reason)
		if err != nil {
			return fmt.Errorf("record source %s: %w", sum.Source, err)
		}
	}
	return tx.Commit()
}

// RecordAppliedMatches stores the video matches a reconciliation run applied.
func (s *Store) RecordAppliedMatches(ctx context.Context, runID string, matches []videomatch.Match) error {
	if len(matches) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record matches: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range matches {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO applied_video_matches (id, run_id, talk_id, talk_title, video_id, video_url, score, applied_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), runID, m.TalkID, m.TalkTitle, m.VideoID, m.VideoURL, m.Score, now)
		if err != nil {
			return fmt.Errorf("record match %s: %w", m.TalkID, err)
		}
	}
	return tx.Commit()
}

// Run is one pipeline run as stored.
type Run struct {
	ID         string  `json:"id"`
	Command    string  `json:"command"`
	StartedAt  string  `json:"startedAt"`
	FinishedAt *string `json:"finishedAt,omitempty"`
	Status     string  `json:"status"`
	TotalTalks int     `json:"totalTalks"`
	Error      *string `json:"error,omitempty"`
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, started_at, finished_at, status, total_talks, error
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r        Run
			finished sql.NullString
			errText  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Command, &r.StartedAt, &finished, &r.Status, &r.TotalTalks, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.String
		}
		if errText.Valid {
			r.Error = &errText.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AppliedMatch is one stored video match.
type AppliedMatch struct {
	RunID     string  `json:"runId"`
	TalkID    string  `json:"talkId"`
	TalkTitle string  `json:"talkTitle"`
	VideoID   string  `json:"videoId"`
	VideoURL  string  `json:"videoUrl"`
	Score     float64 `json:"score"`
	AppliedAt string  `json:"appliedAt"`
}

// MatchesForTalk returns every video match ever applied to a talk, newest
// first.
func (s *Store) MatchesForTalk(ctx context.Context, talkID string) ([]AppliedMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, talk_id, talk_title, video_id, video_url, score, applied_at
		FROM applied_video_matches
		WHERE talk_id = ?
		ORDER BY applied_at DESC
	`, talkID)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := []AppliedMatch{}
	for rows.Next() {
		var m AppliedMatch
		if err := rows.Scan(&m.RunID, &m.TalkID, &m.TalkTitle, &m.VideoID, &m.VideoURL, &m.Score, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// SourceContribution is one stored per-source summary.
type SourceContribution struct {
	Source  string  `json:"source"`
	Records int     `json:"records"`
	Merged  int     `json:"merged"`
	Added   int     `json:"added"`
	Failed  bool    `json:"failed"`
	Reason  *string `json:"reason,omitempty"`
}

// ContributionsForRun returns the per-source summaries stored for a run.
func (s *Store) ContributionsForRun(ctx context.Context, runID string) ([]SourceContribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, records, merged, added, failed, reason
		FROM source_contributions
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	out := []SourceContribution{}
	for rows.Next() {
		var (
			c      SourceContribution
			failed int
			reason sql.NullString
		)
		if err := rows.Scan(&c.Source, &c.Records, &c.Merged, &c.Added, &failed, &reason); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.Failed = failed != 0
		if reason.Valid {
			c.Reason = &reason.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
