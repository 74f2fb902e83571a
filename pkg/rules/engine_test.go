package rules

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmcp/decomm/pkg/classify"
)

func sqlClassification() classify.Result {
	return classify.Result{SourceType: classify.Sql, Confidence: 0.9}
}

func TestProcessFile_CommentOutCreateDatabase(t *testing.T) {
	engine := NewEngine()

	content := "CREATE DATABASE periodic_table;\nCREATE TABLE elements (id INT);\n"
	result := engine.ProcessFile("db/schema.sql", content, sqlClassification(), "periodic_table")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.TotalChanges)
	assert.Contains(t, result.ModifiedContent, "-- CREATE DATABASE periodic_table;")
	assert.Contains(t, result.ModifiedContent, "CREATE TABLE elements (id INT);")

	var applied []string
	for _, rr := range result.RulesApplied {
		if rr.Applied {
			applied = append(applied, rr.RuleID)
		}
	}
	assert.Contains(t, applied, "create_database_removal")
}

func TestProcessFile_YamlConfigCleanup(t *testing.T) {
	engine := NewEngine()

	content := "production:\n  database: postgres_air\n  host: localhost\n"
	classification := classify.Result{SourceType: classify.Config, Confidence: 0.7}
	result := engine.ProcessFile("config/database.yml", content, classification, "postgres_air")

	require.True(t, result.Success)
	assert.Positive(t, result.TotalChanges)
	assert.Contains(t, result.ModifiedContent, "#   database: postgres_air")
	assert.Contains(t, result.ModifiedContent, "host: localhost")
}

func TestProcessFile_NoMatchesNoChanges(t *testing.T) {
	engine := NewEngine()

	content := "CREATE TABLE unrelated (id INT);\n"
	result := engine.ProcessFile("db/other.sql", content, sqlClassification(), "periodic_table")

	require.True(t, result.Success)
	assert.Zero(t, result.TotalChanges)
	assert.Empty(t, result.ModifiedContent)
}

func TestProcessFile_CommentOutIdempotent(t *testing.T) {
	engine := NewEngine()

	content := "USE periodic_table;\n"
	first := engine.ProcessFile("a.sql", content, sqlClassification(), "periodic_table")
	require.Equal(t, 1, first.TotalChanges)

	second := engine.ProcessFile("a.sql", first.ModifiedContent, sqlClassification(), "periodic_table")
	assert.Zero(t, second.TotalChanges)
}

func TestProcessFile_DeprecationNoticeIdempotent(t *testing.T) {
	engine := NewEngine()
	classification := classify.Result{SourceType: classify.Documentation, Confidence: 0.6}

	content := "# Services\n\n| service | `postgres_air` | active |\n"
	first := engine.ProcessFile("README.md", content, classification, "postgres_air")
	require.Positive(t, first.TotalChanges)
	assert.Contains(t, first.ModifiedContent, "DEPRECATED: postgres_air database has been decommissioned")

	second := engine.ProcessFile("README.md", first.ModifiedContent, classification, "postgres_air")
	assert.Zero(t, second.TotalChanges)
}

func TestProcessFile_DeprecationNoticeContiguousRegion(t *testing.T) {
	engine := NewEngine()
	classification := classify.Result{SourceType: classify.Documentation, Confidence: 0.6}

	content := strings.Join([]string{
		"| a | `postgres_air` |",
		"| b | `postgres_air` |",
		"",
		"| c | `postgres_air` |",
	}, "\n")
	result := engine.ProcessFile("TABLES.md", content, classification, "postgres_air")

	// One notice per contiguous region, not per line.
	assert.Equal(t, 2, result.TotalChanges)
	assert.Equal(t, 2, strings.Count(result.ModifiedContent, "DEPRECATED:"))
}

func TestProcessFile_FrameworkGatedRules(t *testing.T) {
	engine := NewEngine()

	content := `resource "aws_rds_cluster" "periodic_table" {}` + "\n"
	withTerraform := classify.Result{
		SourceType:         classify.Infrastructure,
		DetectedFrameworks: []string{"terraform"},
	}
	withoutFrameworks := classify.Result{SourceType: classify.Infrastructure}

	gated := engine.ProcessFile("main.tf", content, withTerraform, "periodic_table")
	assert.Positive(t, gated.TotalChanges)

	ungated := engine.ProcessFile("main.tf", content, withoutFrameworks, "periodic_table")
	assert.Zero(t, ungated.TotalChanges)
}

func TestRulesFor_SelectionOrderAndGating(t *testing.T) {
	engine := NewEngine()

	selected := engine.RulesFor(classify.Sql, nil)
	require.Len(t, selected, 3)
	assert.Equal(t, "create_database_removal", selected[0].ID)
	assert.Equal(t, "use_database_removal", selected[1].ID)

	infra := engine.RulesFor(classify.Infrastructure, []string{"helm"})
	ids := make([]string, 0, len(infra))
	for _, r := range infra {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, "helm_values_cleanup")
	assert.NotContains(t, ids, "terraform_resource_removal")
}

func TestProcessFile_RegexMetacharactersInDatabaseName(t *testing.T) {
	engine := NewEngine()

	content := "CREATE DATABASE my.db(v2);\n"
	result := engine.ProcessFile("weird.sql", content, sqlClassification(), "my.db(v2)")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.TotalChanges)
	// The dot is escaped: "myxdb(v2)" must not match.
	other := engine.ProcessFile("weird.sql", "CREATE DATABASE myxdb(v2);\n", sqlClassification(), "my.db(v2)")
	assert.Zero(t, other.TotalChanges)
}

func TestProcessFile_HyphenatedDatabaseName(t *testing.T) {
	engine := NewEngine()

	content := "export USER-DATA_HOST=db.internal\npsql -d user-data\n"
	classification := classify.Result{SourceType: classify.Shell}
	result := engine.ProcessFile("scripts/db.sh", content, classification, "user-data")

	require.True(t, result.Success)
	assert.Positive(t, result.TotalChanges)
}

func TestProcessFile_InvalidRuleRecordsErrorAndContinues(t *testing.T) {
	engine := NewEngine()
	engine.rules[classify.Sql] = append([]Rule{{
		ID:          "broken_rule",
		Description: "unclosed group",
		Patterns:    []string{`(unclosed{{TARGET_DB}}`},
		Action:      ActionCommentOut,
	}}, engine.rules[classify.Sql]...)

	content := "CREATE DATABASE periodic_table;\n"
	result := engine.ProcessFile("schema.sql", content, sqlClassification(), "periodic_table")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.TotalChanges)

	var broken RuleResult
	for _, rr := range result.RulesApplied {
		if rr.RuleID == "broken_rule" {
			broken = rr
		}
	}
	assert.False(t, broken.Applied)
	assert.NotEmpty(t, broken.Errors)
}

func TestRemoveMatchingLines_MassConservation(t *testing.T) {
	engine := NewEngine()
	engine.rules[classify.Config] = []Rule{{
		ID:       "drop_lines",
		Patterns: []string{`{{TARGET_DB}}`},
		Action:   ActionRemoveMatchingLines,
	}}

	content := "keep\nperiodic_table: true\nkeep too\nPERIODIC_TABLE_URL=x\n"
	result := engine.ProcessFile("app.conf", content, classify.Result{SourceType: classify.Config}, "periodic_table")

	require.Equal(t, 2, result.TotalChanges)
	before := len(strings.Split(content, "\n"))
	after := len(strings.Split(result.ModifiedContent, "\n"))
	assert.Equal(t, before-result.TotalChanges, after)
}

type fakeCommitter struct {
	commits []string
	err     error
}

func (f *fakeCommitter) CreateOrUpdateFile(_ context.Context, _, _, path, _, message, branch string) error {
	if f.err != nil {
		return f.err
	}
	f.commits = append(f.commits, branch+":"+path+":"+message)
	return nil
}

func TestProcessAndCommit_CommitsOnlyWhenChanged(t *testing.T) {
	engine := NewEngine()
	committer := &fakeCommitter{}

	changed := engine.ProcessAndCommit(context.Background(), committer, "acme", "data",
		"decommission-periodic_table-1722500000", "periodic_table",
		"db/schema.sql", "CREATE DATABASE periodic_table;\n", sqlClassification())
	require.True(t, changed.Success)
	require.Len(t, committer.commits, 1)
	assert.Contains(t, committer.commits[0],
		"refactor(sql): remove periodic_table references from db/schema.sql (1 changes)")

	unchanged := engine.ProcessAndCommit(context.Background(), committer, "acme", "data",
		"branch", "periodic_table", "db/other.sql", "SELECT 1;\n", sqlClassification())
	assert.True(t, unchanged.Success)
	assert.Len(t, committer.commits, 1)
}

func TestProcessAndCommit_CommitFailureMarksFile(t *testing.T) {
	engine := NewEngine()
	committer := &fakeCommitter{err: errors.New("branch is gone")}

	result := engine.ProcessAndCommit(context.Background(), committer, "acme", "data",
		"branch", "periodic_table", "db/schema.sql",
		"CREATE DATABASE periodic_table;\n", sqlClassification())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "branch is gone")
}
