package decommission

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/graphmcp/decomm/pkg/agentic"
	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/config"
	"github.com/graphmcp/decomm/pkg/discovery"
	"github.com/graphmcp/decomm/pkg/llm"
	"github.com/graphmcp/decomm/pkg/mcp"
	"github.com/graphmcp/decomm/pkg/pipeline"
	"github.com/graphmcp/decomm/pkg/rules"
	"github.com/graphmcp/decomm/pkg/slack"
	"github.com/graphmcp/decomm/pkg/worklog"
)

// Params selects what a run decommissions.
type Params struct {
	DatabaseName string
	TargetRepos  []string
	SlackChannel string
	WorkflowID   string
}

// Deps are the run's collaborators. Slack may be nil (notifications off);
// Completer may be nil only when no agentic candidates are expected — the
// validation step fails otherwise unless AllowNoLLM is set.
type Deps struct {
	Settings  config.Settings
	Clients   *mcp.Clients
	Completer llm.Completer
	Slack     *slack.Service
	Logs      *worklog.Registry

	// AllowNoLLM skips the LLM secret check in validation. Used by dry runs
	// and tests.
	AllowNoLLM bool

	// Now stamps branch names; defaults to time.Now.
	Now func() time.Time
}

// Runner builds and executes decommissioning workflows.
type Runner struct {
	params Params
	deps   Deps

	classifier  *classify.Classifier
	rulesEngine *rules.Engine
	disco       *discovery.Engine
	processor   *agentic.Processor
	log         *worklog.Log
}

// NewRunner creates a runner for one decommissioning run.
func NewRunner(params Params, deps Deps) *Runner {
	if params.WorkflowID == "" {
		params.WorkflowID = "db-decommission-" + uuid.NewString()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logs == nil {
		deps.Logs = worklog.NewRegistry()
	}

	classifier := classify.NewClassifier()
	rulesEngine := rules.NewEngine()

	r := &Runner{
		params:      params,
		deps:        deps,
		classifier:  classifier,
		rulesEngine: rulesEngine,
		log:         deps.Logs.Get(params.WorkflowID),
	}
	if deps.Clients != nil {
		r.disco = discovery.NewEngine(classifier, deps.Clients.Packer)
	}
	if deps.Completer != nil {
		r.processor = agentic.NewProcessor(deps.Completer, rulesEngine,
			deps.Settings.LLM.BatchSize, deps.Settings.LLM.BatchConcurrency)
	}
	return r
}

// WorkflowID returns the run's id.
func (r *Runner) WorkflowID() string { return r.params.WorkflowID }

// Log returns the run's workflow log.
func (r *Runner) Log() *worklog.Log { return r.log }

// Build compiles the step graph. The chain is linear; the engine still
// permits parallel sub-DAGs for future per-repo fan-out.
func (r *Runner) Build() (*pipeline.Workflow, error) {
	w := r.deps.Settings.Workflow
	return pipeline.NewBuilder("db-decommission").
		WithConfig(w.MaxParallelSteps, w.DefaultTimeoutSeconds, w.DefaultRetryCount, w.StopOnError).
		CustomStep(StepValidateEnvironment, "Environment Validation & Setup",
			r.validateEnvironmentStep, pipeline.WithTimeout(30), pipeline.WithKind("validation")).
		CustomStep(StepProcessRepositories, "Repository Processing with Pattern Discovery",
			r.processRepositoriesStep, pipeline.DependsOn(StepValidateEnvironment),
			pipeline.WithTimeout(600), pipeline.WithKind("discovery")).
		CustomStep(StepApplyRefactoring, "Apply Refactoring Rules",
			r.applyRefactoringStep, pipeline.DependsOn(StepProcessRepositories),
			pipeline.WithTimeout(600), pipeline.WithKind("refactoring")).
		CustomStep(StepCreateGitHubPR, "Create GitHub Pull Request",
			r.createGitHubPRStep, pipeline.DependsOn(StepApplyRefactoring),
			pipeline.WithTimeout(300), pipeline.WithKind("source_control")).
		CustomStep(StepQualityAssurance, "Quality Assurance & Validation",
			r.qualityAssuranceStep, pipeline.DependsOn(StepCreateGitHubPR),
			pipeline.WithTimeout(60), pipeline.WithKind("qa")).
		CustomStep(StepWorkflowSummary, "Workflow Summary & Metrics",
			r.workflowSummaryStep, pipeline.DependsOn(StepQualityAssurance),
			pipeline.WithTimeout(30), pipeline.WithKind("summary")).
		Build()
}

// Run builds and executes the workflow. The engine closes the MCP clients
// on every exit path.
func (r *Runner) Run(ctx context.Context) (*pipeline.Result, error) {
	workflow, err := r.Build()
	if err != nil {
		return nil, err
	}

	opts := pipeline.ExecuteOptions{
		WorkflowID: r.params.WorkflowID,
		Clients:    r.deps.Clients,
		Log:        r.log,
	}
	result := workflow.Execute(ctx, opts)
	r.overlayFileOutcomes(result)
	return result, nil
}

// overlayFileOutcomes folds file-level refactoring failures into the run
// status: a run whose steps all completed is still partial when some files
// failed, and failed when every file did.
func (r *Runner) overlayFileOutcomes(result *pipeline.Result) {
	if result.Status != pipeline.StatusCompleted && result.Status != pipeline.StatusPartialSuccess {
		return
	}
	value, ok := result.StepResults[StepApplyRefactoring]
	if !ok {
		return
	}
	record, ok := value.(*RefactoringRecord)
	if !ok || record.FilesProcessed == 0 {
		return
	}

	failed := 0
	for _, file := range record.Results {
		if !file.Success {
			failed++
		}
	}
	switch {
	case failed == 0:
		return
	case record.FilesModified > 0:
		result.Status = pipeline.StatusPartialSuccess
	default:
		result.Status = pipeline.StatusFailed
	}
}

// requireEnv reports whether the named environment variable resolves.
// An empty name means the secret is not configured at all.
func requireEnv(name string) bool {
	return name != "" && os.Getenv(name) != ""
}
