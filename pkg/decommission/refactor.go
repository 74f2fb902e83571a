package decommission

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graphmcp/decomm/pkg/agentic"
	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/discovery"
	"github.com/graphmcp/decomm/pkg/pipeline"
	"github.com/graphmcp/decomm/pkg/rules"
)

// applyRefactoringStep edits every discovered file: deterministic rules for
// files with an applicable rule set, the agentic processor for files needing
// semantic judgment. File-level results preserve discovery order.
func (r *Runner) applyRefactoringStep(ctx context.Context, wctx *pipeline.Context, _ pipeline.Step) (any, error) {
	db := r.params.DatabaseName

	shared, err := wctx.RequireShared(keyDiscovery)
	if err != nil {
		// No repository produced matches: an empty refactoring record, not
		// a failure.
		record := &RefactoringRecord{DatabaseName: db}
		wctx.SetShared(keyRefactoring, record)
		r.log.Info("No discovery results; nothing to refactor")
		return record, nil
	}
	discoveryResult := shared.(*discovery.Result)

	files := discoveryResult.Files
	record := &RefactoringRecord{
		DatabaseName:   db,
		FilesProcessed: len(files),
		Results:        make([]rules.FileProcessingResult, len(files)),
	}
	if len(files) == 0 {
		wctx.SetShared(keyRefactoring, record)
		r.log.Info("No files found requiring refactoring")
		return record, nil
	}

	r.log.Info(fmt.Sprintf("🔧 Processing %d discovered files with contextual rules", len(files)))

	// Route: agentic candidates by heuristic, deterministic rules for the
	// rest. Result slots keep discovery order either way.
	var candidates []agentic.Candidate
	var candidateSlots []int
	agentSet := make(map[string]bool)
	if r.processor != nil {
		candidates = agentic.SelectCandidates(r.rulesEngine, files)
		for _, c := range candidates {
			agentSet[c.Path] = true
		}
	}

	for i, f := range files {
		if agentSet[f.Path] {
			candidateSlots = append(candidateSlots, i)
			continue
		}
		record.Results[i] = r.rulesEngine.ProcessFile(f.Path, f.Content, f.Classification, db)
	}

	if len(candidates) > 0 {
		agentResults := r.processor.ProcessFiles(ctx, db, candidates, nil, r.log)
		for j, slot := range candidateSlots {
			record.Results[slot] = agentResults[j]
		}
	}

	for _, result := range record.Results {
		if result.TotalChanges > 0 && result.Success {
			record.FilesModified++
		}
	}

	wctx.SetShared(keyRefactoring, record)
	r.log.Info(fmt.Sprintf("📊 Refactoring results: %d/%d files modified",
		record.FilesModified, record.FilesProcessed))
	return record, nil
}

// createGitHubPRStep forks the upstream, creates the feature branch, commits
// every modified file, and opens the pull request. When nothing changed the
// step records a skip instead of failing.
func (r *Runner) createGitHubPRStep(ctx context.Context, wctx *pipeline.Context, _ pipeline.Step) (any, error) {
	db := r.params.DatabaseName

	shared, err := wctx.RequireShared(keyRefactoring)
	if err != nil {
		return nil, err
	}
	refactoring := shared.(*RefactoringRecord)

	var modified []rules.FileProcessingResult
	for _, result := range refactoring.Results {
		if result.Success && result.TotalChanges > 0 && result.ModifiedContent != "" {
			modified = append(modified, result)
		}
	}
	if len(modified) == 0 {
		record := &PRRecord{Skipped: true, Message: "No changes to commit"}
		wctx.SetShared(keyGitHubPR, record)
		r.log.Info("No changes to commit - database not found or already removed")
		return record, nil
	}

	discoveryShared, err := wctx.RequireShared(keyDiscovery)
	if err != nil {
		return nil, err
	}
	repo := discoveryShared.(*discovery.Result).Repo

	sc := r.deps.Clients.SourceControl

	r.log.Info(fmt.Sprintf("🍴 Creating fork of `%s`", repo.String()))
	fork, err := sc.ForkRepository(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, fmt.Errorf("fork repository: %w", err)
	}
	forkOwner := fork.Owner
	if forkOwner == "" {
		forkOwner = repo.Owner
	}

	branch := BranchName(db, r.deps.Now().Unix())
	baseBranch := fork.DefaultBranch
	if baseBranch == "" {
		baseBranch = "main"
	}

	r.log.Info(fmt.Sprintf("🌿 Creating branch `%s`", branch))
	if err := sc.CreateBranch(ctx, forkOwner, repo.Name, branch, baseBranch); err != nil {
		wctx.SetShared(keyRecovery, &RecoveryRecord{ForkOwner: forkOwner})
		return nil, fmt.Errorf("create branch: %w", err)
	}

	committed := 0
	for _, file := range modified {
		message := rules.CommitMessage(file.SourceType, db, file.FilePath, file.TotalChanges)
		if err := sc.CreateOrUpdateFile(ctx, forkOwner, repo.Name, file.FilePath,
			file.ModifiedContent, message, branch); err != nil {
			r.log.Warning(fmt.Sprintf("Failed to commit %s: %v", file.FilePath, err))
			continue
		}
		committed++
		r.log.Info(fmt.Sprintf("Committed `%s`", file.FilePath))
	}
	if committed == 0 {
		wctx.SetShared(keyRecovery, &RecoveryRecord{ForkOwner: forkOwner, BranchName: branch})
		return nil, fmt.Errorf("no files were successfully committed to %s", branch)
	}

	title := fmt.Sprintf("Database Decommission: Remove %s references", db)
	body := prBody(db, modified)

	r.log.Info(fmt.Sprintf("📝 Creating pull request: %s", title))
	pr, err := sc.CreatePullRequest(ctx, repo.Owner, repo.Name, title,
		forkOwner+":"+branch, baseBranch, body)
	if err != nil {
		// The fork and branch survive for manual recovery.
		wctx.SetShared(keyRecovery, &RecoveryRecord{ForkOwner: forkOwner, BranchName: branch})
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	record := &PRRecord{
		ForkOwner:      forkOwner,
		BranchName:     branch,
		FilesCommitted: committed,
		PRNumber:       pr.Number,
		PRURL:          pr.HTMLURL,
		PRTitle:        title,
	}
	wctx.SetShared(keyGitHubPR, record)
	r.log.Info(fmt.Sprintf("✅ Created PR #%d: %s", pr.Number, pr.HTMLURL))
	return record, nil
}

// BranchName formats the feature branch name.
func BranchName(databaseName string, unixTS int64) string {
	return fmt.Sprintf("decommission-%s-%d", databaseName, unixTS)
}

// prBody renders the pull request's Markdown body.
func prBody(databaseName string, modified []rules.FileProcessingResult) string {
	totalChanges := 0
	byType := make(map[classify.SourceType]int)
	for _, file := range modified {
		totalChanges += file.TotalChanges
		byType[file.SourceType]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Database Decommissioning: %s\n\n", databaseName)
	fmt.Fprintf(&b, "This pull request removes all references to the `%s` database as part of the database decommissioning process.\n\n", databaseName)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- **Database**: `%s`\n", databaseName)
	fmt.Fprintf(&b, "- **Files modified**: %d\n", len(modified))
	fmt.Fprintf(&b, "- **Total changes**: %d\n\n", totalChanges)

	b.WriteString("## Changes by File Type\n")
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "- **%s**: %d files modified\n", strings.ToUpper(t), byType[classify.SourceType(t)])
	}

	b.WriteString("\n## Modified Files\n")
	for _, file := range modified {
		fmt.Fprintf(&b, "- `%s` (%d changes)\n", file.FilePath, file.TotalChanges)
	}

	b.WriteString("\n---\n*This PR was generated automatically by the database decommissioning workflow*\n")
	return b.String()
}
