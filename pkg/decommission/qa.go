package decommission

import (
	"context"
	"fmt"

	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/discovery"
	"github.com/graphmcp/decomm/pkg/pipeline"
)

// QA status values.
const (
	qaPass    = "pass"
	qaWarning = "warning"
	qaFail    = "fail"
)

// qualityAssuranceStep scores the run: reference identification quality,
// classification coverage, and service integrity risk.
func (r *Runner) qualityAssuranceStep(_ context.Context, wctx *pipeline.Context, _ pipeline.Step) (any, error) {
	db := r.params.DatabaseName

	var discoveryResult *discovery.Result
	if shared, ok := wctx.Shared(keyDiscovery); ok {
		discoveryResult = shared.(*discovery.Result)
	}

	checks := []QACheck{
		referenceRemovalCheck(discoveryResult, db),
		ruleComplianceCheck(discoveryResult),
		serviceIntegrityCheck(discoveryResult),
	}

	passed := 0
	for _, check := range checks {
		if check.Status == qaPass {
			passed++
		}
	}

	record := QARecord{
		DatabaseName:    db,
		Checks:          checks,
		AllChecksPassed: passed == len(checks),
		QualityScore:    float64(passed) / float64(len(checks)) * 100,
		Recommendations: recommendations(checks),
	}

	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		rows = append(rows, []string{
			check.Check,
			check.Status,
			fmt.Sprintf("%d%%", check.Confidence),
			check.Description,
		})
	}
	r.log.AppendTable([]string{"Check", "Result", "Confidence", "Notes"}, rows,
		"Quality Assurance Results", nil)
	r.log.Info(fmt.Sprintf("🔍 Quality assurance complete: score %.1f%%", record.QualityScore))

	return record, nil
}

// referenceRemovalCheck: pass iff files matched and the high-confidence
// fraction is at least 0.8.
func referenceRemovalCheck(result *discovery.Result, databaseName string) QACheck {
	check := QACheck{Check: "database_reference_removal"}

	if result == nil || result.TotalFilesScanned == 0 {
		check.Status = qaFail
		check.Confidence = 0
		check.Description = "No files were analyzed - repository may be empty or inaccessible"
		return check
	}

	matched := result.MatchedFileCount()
	if matched == 0 {
		check.Status = qaWarning
		check.Confidence = 50
		check.Description = fmt.Sprintf(
			"No %s references found - database may already be removed or not used", databaseName)
		return check
	}

	high := result.ConfidenceDistribution.High
	if float64(high)/float64(matched) >= 0.8 {
		check.Status = qaPass
		check.Confidence = 95
		check.Description = fmt.Sprintf(
			"Database references properly identified with high confidence (%d/%d files)", high, matched)
		return check
	}

	check.Status = qaWarning
	check.Confidence = 70
	check.Description = fmt.Sprintf(
		"Database references found but some have low confidence (%d/%d high confidence)", high, matched)
	return check
}

// ruleComplianceCheck: pass iff at least two distinct source types were
// classified.
func ruleComplianceCheck(result *discovery.Result) QACheck {
	check := QACheck{Check: "rule_compliance"}

	if result == nil || len(result.FilesByType) == 0 {
		check.Status = qaWarning
		check.Confidence = 40
		check.Description = "No file type classification available for rule compliance validation"
		return check
	}

	typeCount := len(result.FilesByType)
	total := result.MatchedFileCount()
	if typeCount >= 2 {
		check.Status = qaPass
		check.Confidence = 85
		check.Description = fmt.Sprintf(
			"Pattern discovery classified %d file types across %d files", typeCount, total)
		return check
	}

	check.Status = qaWarning
	check.Confidence = 60
	check.Description = fmt.Sprintf(
		"Limited file type diversity found (%d types) - may indicate narrow scope", typeCount)
	return check
}

// serviceIntegrityCheck: warn when more than five application code files
// (Python and Shell) reference the database.
func serviceIntegrityCheck(result *discovery.Result) QACheck {
	check := QACheck{Check: "service_integrity"}

	if result == nil || len(result.FilesByType) == 0 {
		check.Status = qaPass
		check.Confidence = 80
		check.Description = "No classified files found - minimal service integrity risk"
		return check
	}

	counts := typeCounts(result)
	critical := counts[classify.Python] + counts[classify.Shell]
	infra := counts[classify.Infrastructure] + counts[classify.Config]

	switch {
	case critical > 5:
		check.Status = qaWarning
		check.Confidence = 85
		check.Description = fmt.Sprintf(
			"High service integrity risk - %d application code files reference database", critical)
	case critical > 0:
		check.Status = qaPass
		check.Confidence = 80
		check.Description = fmt.Sprintf(
			"Moderate service integrity risk - %d application files affected", critical)
	default:
		check.Status = qaPass
		check.Confidence = 90
		check.Description = fmt.Sprintf(
			"Low service integrity risk - mainly infrastructure/config files (%d files)", infra)
	}
	return check
}

// recommendations derives actionable follow-ups from the check outcomes.
func recommendations(checks []QACheck) []string {
	out := []string{
		"Monitor application logs for any database connection errors",
		"Update documentation to reflect database decommissioning",
	}
	for _, check := range checks {
		switch check.Check {
		case "service_integrity":
			if check.Status == qaWarning {
				out = append(out,
					"Thoroughly test application functionality before deploying changes",
					"Consider phased rollout with rollback plan")
			}
		case "database_reference_removal":
			if check.Status == qaWarning {
				out = append(out, "Review low-confidence matches manually for accuracy")
			}
		case "rule_compliance":
			if check.Status == qaWarning {
				out = append(out, "Consider expanding search patterns for more comprehensive coverage")
			}
		}
	}
	return out
}

// workflowSummaryStep aggregates the run's counts into the final record and
// table.
func (r *Runner) workflowSummaryStep(ctx context.Context, wctx *pipeline.Context, _ pipeline.Step) (any, error) {
	summary := SummaryRecord{DatabaseName: r.params.DatabaseName}

	if value, ok := wctx.StepResult(StepProcessRepositories); ok {
		processing := value.(ProcessingRecord)
		summary.ReposProcessed = processing.ReposOK
		summary.FilesMatched = processing.FilesMatched
	}
	if shared, ok := wctx.Shared(keyRefactoring); ok {
		refactoring := shared.(*RefactoringRecord)
		summary.FilesProcessed = refactoring.FilesProcessed
		summary.FilesModified = refactoring.FilesModified
	}
	if shared, ok := wctx.Shared(keyGitHubPR); ok {
		pr := shared.(*PRRecord)
		summary.PRCreated = !pr.Skipped
		summary.PRURL = pr.PRURL
	}
	if value, ok := wctx.StepResult(StepQualityAssurance); ok {
		summary.QualityScore = value.(QARecord).QualityScore
	}

	rows := [][]string{
		{"Repositories Processed", fmt.Sprintf("%d", summary.ReposProcessed)},
		{"Files Discovered", fmt.Sprintf("%d", summary.FilesMatched)},
		{"Files Processed", fmt.Sprintf("%d", summary.FilesProcessed)},
		{"Files Modified", fmt.Sprintf("%d", summary.FilesModified)},
		{"Quality Score", fmt.Sprintf("%.1f%%", summary.QualityScore)},
		{"Pull Request", prCell(summary)},
	}
	r.log.AppendTable([]string{"Metric", "Value"}, rows, "Final Workflow Summary", nil)

	r.deps.Slack.NotifyWorkflowCompleted(ctx, r.log, r.params.DatabaseName,
		summary.ReposProcessed, summary.FilesProcessed, summary.FilesModified)
	r.log.Info(fmt.Sprintf("🎉 Workflow summary complete for `%s`", r.params.DatabaseName))

	return summary, nil
}

func prCell(summary SummaryRecord) string {
	if summary.PRCreated {
		return summary.PRURL
	}
	return "skipped"
}
