// Package decommission wires the concrete database-decommissioning step
// graph: environment validation, repository discovery, rule-based and
// agentic refactoring, PR creation, quality assurance, and the final
// summary.
package decommission

import (
	"fmt"

	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/discovery"
	"github.com/graphmcp/decomm/pkg/rules"
)

// Context keys shared between steps.
const (
	keyDiscovery   = "discovery"
	keyRefactoring = "refactoring"
	keyGitHubPR    = "github_pr"
	keyRecovery    = "github_recovery"
)

// Step ids, in dependency order.
const (
	StepValidateEnvironment = "validate_environment"
	StepProcessRepositories = "process_repositories"
	StepApplyRefactoring    = "apply_refactoring"
	StepCreateGitHubPR      = "create_github_pr"
	StepQualityAssurance    = "quality_assurance"
	StepWorkflowSummary     = "workflow_summary"
)

// ValidationError reports a missing required parameter or secret. The
// validation step fails before any external call is made.
type ValidationError struct {
	Missing string
}

// Error returns the formatted message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("environment validation failed: missing %s", e.Missing)
}

// ValidationRecord is the validate_environment step result.
type ValidationRecord struct {
	DatabaseName string          `json:"database_name"`
	Ready        bool            `json:"ready"`
	Components   map[string]bool `json:"components"`
	PatternCount int             `json:"pattern_count"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// RepoRecord is the per-repository outcome inside process_repositories.
type RepoRecord struct {
	Repository    string `json:"repository"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	FilesScanned  int    `json:"files_scanned"`
	FilesMatched  int    `json:"files_matched"`
	HighConfident int    `json:"high_confidence"`
}

// ProcessingRecord is the process_repositories step result.
type ProcessingRecord struct {
	DatabaseName  string       `json:"database_name"`
	TotalRepos    int          `json:"total_repositories"`
	ReposOK       int          `json:"repositories_processed"`
	ReposFailed   int          `json:"repositories_failed"`
	ReposSkipped  int          `json:"repositories_skipped"`
	Repositories  []RepoRecord `json:"repository_results"`
	FilesScanned  int          `json:"total_files_scanned"`
	FilesMatched  int          `json:"total_files_matched"`
}

// RefactoringRecord is the apply_refactoring step result, shared under the
// refactoring context key.
type RefactoringRecord struct {
	DatabaseName   string                       `json:"database_name"`
	FilesProcessed int                          `json:"files_processed"`
	FilesModified  int                          `json:"files_modified"`
	Results        []rules.FileProcessingResult `json:"results"`
}

// PRRecord is the create_github_pr step result.
type PRRecord struct {
	Skipped        bool   `json:"skipped"`
	Message        string `json:"message,omitempty"`
	ForkOwner      string `json:"fork_owner,omitempty"`
	BranchName     string `json:"branch_name,omitempty"`
	FilesCommitted int    `json:"files_committed"`
	PRNumber       int    `json:"pr_number,omitempty"`
	PRURL          string `json:"pr_url,omitempty"`
	PRTitle        string `json:"pr_title,omitempty"`
}

// RecoveryRecord preserves fork and branch names when PR creation fails
// partway, for manual recovery.
type RecoveryRecord struct {
	ForkOwner  string `json:"fork_owner"`
	BranchName string `json:"branch_name"`
}

// QACheck is one quality assurance check outcome.
type QACheck struct {
	Check       string `json:"check"`
	Status      string `json:"status"` // pass, warning, fail
	Confidence  int    `json:"confidence"`
	Description string `json:"description"`
}

// QARecord is the quality_assurance step result.
type QARecord struct {
	DatabaseName    string    `json:"database_name"`
	Checks          []QACheck `json:"qa_checks"`
	AllChecksPassed bool      `json:"all_checks_passed"`
	QualityScore    float64   `json:"quality_score"`
	Recommendations []string  `json:"recommendations"`
}

// SummaryRecord is the workflow_summary step result.
type SummaryRecord struct {
	DatabaseName   string  `json:"database_name"`
	ReposProcessed int     `json:"repositories_processed"`
	FilesMatched   int     `json:"files_discovered"`
	FilesProcessed int     `json:"files_processed"`
	FilesModified  int     `json:"files_modified"`
	PRCreated      bool    `json:"pr_created"`
	PRURL          string  `json:"pr_url,omitempty"`
	QualityScore   float64 `json:"quality_score"`
}

// typeCounts tallies matched files per source type.
func typeCounts(result *discovery.Result) map[classify.SourceType]int {
	counts := make(map[classify.SourceType]int, len(result.FilesByType))
	for sourceType, files := range result.FilesByType {
		counts[sourceType] = len(files)
	}
	return counts
}
