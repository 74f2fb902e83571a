package decommission

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/discovery"
	"github.com/graphmcp/decomm/pkg/pipeline"
)

// validateEnvironmentStep checks the secrets hierarchy and initializes the
// run's components. It fails when the database name, the MCP clients, or a
// required secret is missing; degraded collaborators (Slack) are warnings.
func (r *Runner) validateEnvironmentStep(_ context.Context, _ *pipeline.Context, _ pipeline.Step) (any, error) {
	db := r.params.DatabaseName
	log := slog.Default().With("component", "decommission", "database", db)
	log.Info("Validating environment")

	record := ValidationRecord{
		DatabaseName: db,
		Components: map[string]bool{
			"source_classifier":   r.classifier != nil,
			"contextual_rules":    r.rulesEngine != nil,
			"pattern_discovery":   r.disco != nil,
			"agentic_processor":   r.processor != nil,
			"slack_notifications": r.deps.Slack != nil,
		},
	}

	if db == "" {
		return nil, &ValidationError{Missing: "database name"}
	}
	if r.deps.Clients == nil || r.disco == nil {
		return nil, &ValidationError{Missing: "MCP clients"}
	}
	if !requireEnv(r.deps.Settings.GitHub.TokenEnv) {
		return nil, &ValidationError{Missing: r.deps.Settings.GitHub.TokenEnv}
	}
	if r.processor == nil && !r.deps.AllowNoLLM {
		return nil, &ValidationError{Missing: r.deps.Settings.LLM.APIKeyEnv}
	}
	if r.deps.Slack == nil {
		record.Warnings = append(record.Warnings, "Slack notifications disabled")
	}

	// Pattern generation sanity check for this database name.
	for _, sourceType := range classify.All() {
		record.PatternCount += len(classify.SearchPatterns(sourceType, db))
	}
	record.Ready = true

	rows := make([][]string, 0, len(record.Components))
	names := make([]string, 0, len(record.Components))
	for name := range record.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := "ready"
		if !record.Components[name] {
			status = "disabled"
		}
		rows = append(rows, []string{name, status})
	}
	r.log.AppendTable([]string{"Component", "Status"}, rows, "Environment Readiness", nil)
	r.log.Info(fmt.Sprintf("Environment validated for `%s` (%d search patterns)", db, record.PatternCount))

	return record, nil
}

// processRepositoriesStep fans out discovery over the target repositories
// with bounded concurrency. Malformed URLs are skipped with a warning; the
// step errors only when every valid repository fails.
func (r *Runner) processRepositoriesStep(ctx context.Context, wctx *pipeline.Context, _ pipeline.Step) (any, error) {
	db := r.params.DatabaseName
	record := ProcessingRecord{DatabaseName: db, TotalRepos: len(r.params.TargetRepos)}

	r.log.Info(fmt.Sprintf("Processing %d repositories for `%s`", len(r.params.TargetRepos), db))

	// Parse up front so skipped entries don't occupy worker slots.
	type target struct {
		index int
		ref   discovery.RepoRef
	}
	var targets []target
	for i, repoURL := range r.params.TargetRepos {
		ref, err := discovery.ParseRepoURL(repoURL)
		if err != nil {
			record.ReposSkipped++
			r.log.Warning(fmt.Sprintf("Skipping repository with invalid URL: %s", repoURL))
			continue
		}
		targets = append(targets, target{index: i, ref: ref})
	}

	results := make([]*RepoRecord, len(targets))
	discoveries := make([]*discovery.Result, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.deps.Settings.Workflow.RepoConcurrency))
	for i, tgt := range targets {
		g.Go(func() error {
			results[i], discoveries[i] = r.processOneRepository(gctx, tgt.ref, tgt.index+1)
			return nil
		})
	}
	_ = g.Wait()

	var lastDiscovery *discovery.Result
	for i, res := range results {
		if res == nil {
			continue
		}
		record.Repositories = append(record.Repositories, *res)
		if res.Success {
			record.ReposOK++
			record.FilesScanned += res.FilesScanned
			record.FilesMatched += res.FilesMatched
			if discoveries[i] != nil && (lastDiscovery == nil || discoveries[i].MatchedFileCount() > 0) {
				lastDiscovery = discoveries[i]
			}
		} else {
			record.ReposFailed++
		}
	}

	if lastDiscovery != nil {
		wctx.SetShared(keyDiscovery, lastDiscovery)
	}

	if len(targets) > 0 && record.ReposOK == 0 {
		return nil, fmt.Errorf("all %d repositories failed discovery", len(targets))
	}
	return record, nil
}

// processOneRepository runs discovery for one repository and emits its
// summary table and chart.
func (r *Runner) processOneRepository(ctx context.Context, ref discovery.RepoRef, ordinal int) (*RepoRecord, *discovery.Result) {
	db := r.params.DatabaseName
	record := &RepoRecord{Repository: ref.URL, Owner: ref.Owner, Name: ref.Name}

	r.log.Info(fmt.Sprintf("📦 Repository start: `%s`", ref.String()))
	r.deps.Slack.NotifyRepoStarted(ctx, r.log, db, ref.String(), ordinal, len(r.params.TargetRepos))

	result, err := r.disco.Discover(ctx, db, ref)
	if err != nil {
		record.Error = err.Error()
		r.log.Error(fmt.Sprintf("Discovery failed for `%s`: %v", ref.String(), err))
		return record, nil
	}

	record.Success = true
	record.FilesScanned = result.TotalFilesScanned
	record.FilesMatched = result.MatchedFileCount()
	record.HighConfident = result.ConfidenceDistribution.High

	r.logDiscoverySummary(ref, result)
	r.deps.Slack.NotifyRepoCompleted(ctx, r.log, db, ref.String(), record.FilesMatched)
	r.log.Info(fmt.Sprintf("✅ Repository end: `%s` (%d files matched)", ref.String(), record.FilesMatched))
	return record, result
}

// logDiscoverySummary emits the per-repo hit table and files-by-type
// sunburst.
func (r *Runner) logDiscoverySummary(ref discovery.RepoRef, result *discovery.Result) {
	rows := make([][]string, 0, len(result.Files))
	for _, f := range result.Files {
		rows = append(rows, []string{
			f.Path,
			string(f.SourceType),
			fmt.Sprintf("%.2f", f.Confidence),
			fmt.Sprintf("%d", f.MatchCount),
		})
	}
	r.log.AppendTable(
		[]string{"File", "Type", "Confidence", "Matches"}, rows,
		fmt.Sprintf("Database references in %s", ref.String()), nil)

	if len(result.Files) == 0 {
		return
	}

	counts := typeCounts(result)
	labels := []string{result.DatabaseName}
	parents := []string{""}
	values := []float64{float64(len(result.Files))}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		labels = append(labels, t)
		parents = append(parents, result.DatabaseName)
		values = append(values, float64(counts[classify.SourceType(t)]))
	}
	r.log.AppendSunburst(labels, parents, values,
		fmt.Sprintf("Files by type in %s", ref.String()), nil, nil)
}
