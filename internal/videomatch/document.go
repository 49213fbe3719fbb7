package videomatch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jkdev/speaking/internal/talks"
)

// LoadCandidates reads a candidate scan from disk. A missing or empty file is
// not an error: the scan runs on a different cadence than the merge, so the
// reconciler treats "no scan yet" as zero candidates.
func LoadCandidates(path string) (*CandidateDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CandidateDocument{Videos: []Candidate{}}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc CandidateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Videos == nil {
		doc.Videos = []Candidate{}
	}
	return &doc, nil
}

// SaveReport writes the reconciliation report atomically next to the dataset.
func SaveReport(path string, report *Report) error {
	return talks.WriteJSONFile(path, report)
}
