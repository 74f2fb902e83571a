// Package rules applies deterministic decommissioning edits to files, keyed
// on source type and detected frameworks.
package rules

import (
	"github.com/graphmcp/decomm/pkg/classify"
)

// Action is the closed set of edits a rule can perform.
type Action string

// Rule actions.
const (
	ActionCommentOut           Action = "comment_out"
	ActionAddDeprecationNotice Action = "add_deprecation_notice"
	ActionRemoveMatchingLines  Action = "remove_matching_lines"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCommentOut, ActionAddDeprecationNotice, ActionRemoveMatchingLines:
		return true
	}
	return false
}

// targetToken is the template token substituted with the regex-escaped
// database name at apply time.
const targetToken = "{{TARGET_DB}}"

// Rule is a named pattern-plus-action unit. Patterns carry the
// {{TARGET_DB}} token.
type Rule struct {
	ID                 string   `yaml:"id" json:"id"`
	Description        string   `yaml:"description" json:"description"`
	Patterns           []string `yaml:"patterns" json:"patterns"`
	Action             Action   `yaml:"action" json:"action"`
	RequiredFrameworks []string `yaml:"frameworks,omitempty" json:"frameworks,omitempty"`

	// CommentPrefix is the comment marker of the rule's language family.
	// Empty means the engine infers one per line.
	CommentPrefix string `yaml:"comment_prefix,omitempty" json:"comment_prefix,omitempty"`
}

// RuleResult is the outcome of applying one rule to one file.
type RuleResult struct {
	RuleID      string   `json:"rule_id"`
	Description string   `json:"description"`
	Applied     bool     `json:"applied"`
	ChangesMade int      `json:"changes_made"`
	Warnings    []string `json:"warnings,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// FileProcessingResult is the outcome of running all applicable rules over
// one file.
type FileProcessingResult struct {
	FilePath        string              `json:"file_path"`
	SourceType      classify.SourceType `json:"source_type"`
	RulesApplied    []RuleResult        `json:"rules_applied"`
	TotalChanges    int                 `json:"total_changes"`
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	ModifiedContent string              `json:"modified_content,omitempty"`
}
