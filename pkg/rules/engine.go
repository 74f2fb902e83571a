package rules

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/graphmcp/decomm/pkg/classify"
)

// Engine selects and executes rules against file content. Safe for
// concurrent use; the compiled-pattern cache is shared across files so rules
// for the same database are compiled once.
type Engine struct {
	rules map[classify.SourceType][]Rule

	cacheMu sync.RWMutex
	cache   map[string][]*regexp.Regexp // "<rule id>\x00<database>" → compiled patterns

	logger *slog.Logger
}

// NewEngine creates an engine with the built-in rule sets.
func NewEngine() *Engine {
	return &Engine{
		rules:  defaultRuleSets(),
		cache:  make(map[string][]*regexp.Regexp),
		logger: slog.Default().With("component", "rules-engine"),
	}
}

// RulesFor returns the rules applicable to a source type and detected
// frameworks, in evaluation order. A rule with required frameworks is
// selected only when at least one is detected.
func (e *Engine) RulesFor(sourceType classify.SourceType, frameworks []string) []Rule {
	detected := make(map[string]bool, len(frameworks))
	for _, fw := range frameworks {
		detected[fw] = true
	}

	var selected []Rule
	for _, rule := range e.rules[sourceType] {
		if len(rule.RequiredFrameworks) == 0 {
			selected = append(selected, rule)
			continue
		}
		for _, fw := range rule.RequiredFrameworks {
			if detected[fw] {
				selected = append(selected, rule)
				break
			}
		}
	}
	return selected
}

// ProcessFile runs every applicable rule over content and returns the
// accumulated result. A rule failure is recorded and does not stop the
// remaining rules.
func (e *Engine) ProcessFile(filePath, content string, classification classify.Result, databaseName string) FileProcessingResult {
	selected := e.RulesFor(classification.SourceType, classification.DetectedFrameworks)

	modified := content
	var ruleResults []RuleResult
	totalChanges := 0

	for _, rule := range selected {
		newContent, result := e.applyRule(rule, modified, databaseName)
		ruleResults = append(ruleResults, result)
		totalChanges += result.ChangesMade
		if result.Applied {
			modified = newContent
		}
	}

	out := FileProcessingResult{
		FilePath:     filePath,
		SourceType:   classification.SourceType,
		RulesApplied: ruleResults,
		TotalChanges: totalChanges,
		Success:      true,
	}
	if totalChanges > 0 {
		out.ModifiedContent = modified
	}
	return out
}

// Committer is the subset of the source-control capability the engine needs
// to publish an edited file.
type Committer interface {
	CreateOrUpdateFile(ctx context.Context, owner, name, path, content, message, branch string) error
}

// ProcessAndCommit runs ProcessFile and, when changes were made, commits the
// new content on the designated branch. The engine never creates branches.
func (e *Engine) ProcessAndCommit(ctx context.Context, committer Committer, owner, repo, branch, databaseName, filePath, content string, classification classify.Result) FileProcessingResult {
	result := e.ProcessFile(filePath, content, classification, databaseName)
	if result.TotalChanges == 0 {
		return result
	}

	message := CommitMessage(classification.SourceType, databaseName, filePath, result.TotalChanges)
	if err := committer.CreateOrUpdateFile(ctx, owner, repo, filePath, result.ModifiedContent, message, branch); err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("commit failed: %v", err)
	}
	return result
}

// CommitMessage formats the per-file commit message.
func CommitMessage(sourceType classify.SourceType, databaseName, filePath string, changes int) string {
	return fmt.Sprintf("refactor(%s): remove %s references from %s (%d changes)",
		sourceType, databaseName, filePath, changes)
}

// applyRule executes one rule over content.
func (e *Engine) applyRule(rule Rule, content, databaseName string) (string, RuleResult) {
	result := RuleResult{RuleID: rule.ID, Description: rule.Description}

	patterns, err := e.compiledPatterns(rule, databaseName)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		e.logger.Warn("Rule pattern compilation failed",
			"rule", rule.ID, "error", err)
		return content, result
	}

	var modified string
	var changes int
	switch rule.Action {
	case ActionCommentOut:
		modified, changes = commentOut(content, patterns, rule.CommentPrefix)
	case ActionAddDeprecationNotice:
		modified, changes = addDeprecationNotice(content, patterns, databaseName, rule.CommentPrefix)
	case ActionRemoveMatchingLines:
		modified, changes = removeMatchingLines(content, patterns)
	default:
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown action %q", rule.Action))
		return content, result
	}

	result.Applied = changes > 0
	result.ChangesMade = changes
	return modified, result
}

// compiledPatterns substitutes the target token and compiles the rule's
// patterns, caching by (rule id, database name).
func (e *Engine) compiledPatterns(rule Rule, databaseName string) ([]*regexp.Regexp, error) {
	key := rule.ID + "\x00" + databaseName

	e.cacheMu.RLock()
	if cached, ok := e.cache[key]; ok {
		e.cacheMu.RUnlock()
		return cached, nil
	}
	e.cacheMu.RUnlock()

	escaped := regexp.QuoteMeta(databaseName)
	compiled := make([]*regexp.Regexp, 0, len(rule.Patterns))
	for _, pattern := range rule.Patterns {
		expr := strings.ReplaceAll(pattern, targetToken, escaped)
		re, err := regexp.Compile(`(?i)` + expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: compile %q: %w", rule.ID, expr, err)
		}
		compiled = append(compiled, re)
	}

	e.cacheMu.Lock()
	e.cache[key] = compiled
	e.cacheMu.Unlock()
	return compiled, nil
}
