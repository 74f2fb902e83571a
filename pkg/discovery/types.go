// Package discovery locates files referencing a database across a packed
// remote repository, classifies them, and scores the matches.
package discovery

import (
	"fmt"
	"strings"

	"github.com/graphmcp/decomm/pkg/classify"
)

// RepoRef identifies a target repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// String returns owner/name.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoURL parses a canonical https://github.com/<owner>/<name> URL.
// A trailing slash is tolerated; anything else is rejected.
func ParseRepoURL(repoURL string) (RepoRef, error) {
	const prefix = "https://github.com/"
	if !strings.HasPrefix(repoURL, prefix) {
		return RepoRef{}, fmt.Errorf("invalid repository URL format: %s", repoURL)
	}
	path := strings.TrimSuffix(strings.TrimPrefix(repoURL, prefix), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("invalid repository URL format: %s", repoURL)
	}
	return RepoRef{Owner: parts[0], Name: parts[1], URL: prefix + path}, nil
}

// PatternMatch records one pattern hit inside a file.
type PatternMatch struct {
	Pattern     string `json:"pattern"`
	LineNumber  int    `json:"line_number"`
	LineContent string `json:"line_content"`
}

// FileMatch aggregates every hit for one file. Deduplicated by path within
// a Result.
type FileMatch struct {
	Path           string              `json:"path"`
	SourceType     classify.SourceType `json:"source_type"`
	Confidence     float64             `json:"confidence"`
	MatchCount     int                 `json:"match_count"`
	PatternMatches []PatternMatch      `json:"pattern_matches"`

	// Content is the file body recovered from the packed archive, carried
	// forward so rule application does not re-fetch it.
	Content string `json:"-"`

	Classification classify.Result `json:"classification"`
}

// Distribution buckets file confidences. High+Medium+Low equals the number
// of matched files.
type Distribution struct {
	High    int     `json:"high"`
	Medium  int     `json:"medium"`
	Low     int     `json:"low"`
	Average float64 `json:"average"`
}

// Result is the outcome of discovery over one repository.
type Result struct {
	DatabaseName           string                              `json:"database_name"`
	Repo                   RepoRef                             `json:"repo"`
	TotalFilesScanned      int                                 `json:"total_files_scanned"`
	Files                  []FileMatch                         `json:"files"`
	FilesByType            map[classify.SourceType][]FileMatch `json:"files_by_type"`
	ConfidenceDistribution Distribution                        `json:"confidence_distribution"`
	OutputID               string                              `json:"output_id,omitempty"`
}

// MatchedFileCount returns the number of distinct matched files.
func (r *Result) MatchedFileCount() int {
	return len(r.Files)
}
