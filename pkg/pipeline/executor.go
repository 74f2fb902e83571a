package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphmcp/decomm/pkg/mcp"
	"github.com/graphmcp/decomm/pkg/worklog"
)

// Status is the terminal state of a workflow run.
type Status string

// Workflow statuses.
const (
	StatusCompleted      Status = "completed"
	StatusPartialSuccess Status = "partial_success"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// Result aggregates a workflow run.
type Result struct {
	Status          Status            `json:"status"`
	DurationSeconds float64           `json:"duration_seconds"`
	SuccessRate     float64           `json:"success_rate"`
	StepResults     map[string]any    `json:"step_results"`
	StepErrors      map[string]string `json:"step_errors,omitempty"`
	StepsCompleted  int               `json:"steps_completed"`
	StepsFailed     int               `json:"steps_failed"`
	StepsSkipped    int               `json:"steps_skipped"`
}

// Workflow is a compiled, executable step DAG.
type Workflow struct {
	cfg   Config
	steps []Step
}

// Name returns the workflow's configured name.
func (w *Workflow) Name() string { return w.cfg.Name }

// Steps returns the declared steps in declaration order.
func (w *Workflow) Steps() []Step {
	out := make([]Step, len(w.steps))
	copy(out, w.steps)
	return out
}

// ExecuteOptions supplies the run's collaborators. Clients, Invoker, and Log
// may each be nil; a nil Invoker fails tool-binding steps.
type ExecuteOptions struct {
	WorkflowID string
	Clients    *mcp.Clients
	Invoker    mcp.Invoker
	Log        *worklog.Log
}

type stepState int

const (
	statePending stepState = iota
	stateRunning
	stateCompleted
	stateFailed
	stateSkipped
	stateCancelled
)

type completion struct {
	index  int
	result any
	err    error
}

// Execute runs the workflow to its terminal step, then closes the run's MCP
// clients exactly once regardless of the error path.
func (w *Workflow) Execute(ctx context.Context, opts ExecuteOptions) *Result {
	start := time.Now()
	log := slog.Default().With("component", "pipeline", "workflow", w.cfg.Name, "workflow_id", opts.WorkflowID)
	log.Info("Executing workflow", "steps", len(w.steps), "max_parallel", w.cfg.MaxParallelSteps)

	wctx := NewContext(opts.WorkflowID, opts.Clients, opts.Log)
	defer func() {
		if opts.Clients != nil {
			_ = opts.Clients.Close()
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := make([]stepState, len(w.steps))
	stepErrors := make(map[string]string)
	indexByID := make(map[string]int, len(w.steps))
	for i, s := range w.steps {
		indexByID[s.ID] = i
	}

	done := make(chan completion)
	running := 0
	cancelled := false

	launchReady := func() {
		if cancelled {
			return
		}
		for i, s := range w.steps {
			if states[i] != statePending || running >= w.cfg.MaxParallelSteps {
				continue
			}
			ready := true
			for _, dep := range s.DependsOn {
				if states[indexByID[dep]] != stateCompleted {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			states[i] = stateRunning
			running++
			go func(idx int, step Step) {
				result, err := w.runStep(runCtx, wctx, step, opts)
				done <- completion{index: idx, result: result, err: err}
			}(i, s)
		}
	}

	// skipDependents marks every transitive dependent of a failed step.
	var skipDependents func(failedIdx int)
	skipDependents = func(failedIdx int) {
		failedID := w.steps[failedIdx].ID
		for i, s := range w.steps {
			if states[i] != statePending {
				continue
			}
			for _, dep := range s.DependsOn {
				if dep == failedID {
					states[i] = stateSkipped
					log.Warn("Skipping step: dependency failed", "step", s.ID, "failed_dependency", failedID)
					skipDependents(i)
					break
				}
			}
		}
	}

	handleCompletion := func(msg completion) {
		running--
		step := w.steps[msg.index]
		if msg.err != nil {
			states[msg.index] = stateFailed
			stepErrors[step.ID] = msg.err.Error()
			log.Error("Step failed", "step", step.ID, "error", msg.err)
			if opts.Log != nil {
				opts.Log.Error(fmt.Sprintf("Step %s failed: %v", step.ID, msg.err))
			}
			if w.cfg.StopOnError {
				cancelled = true
				cancel()
			} else {
				skipDependents(msg.index)
			}
			return
		}

		// Publish before marking completed: dependents must observe the
		// value as soon as they become ready.
		if err := wctx.setStepResult(step.ID, msg.result); err != nil {
			states[msg.index] = stateFailed
			stepErrors[step.ID] = err.Error()
			log.Error("Step result publication failed", "step", step.ID, "error", err)
			return
		}
		states[msg.index] = stateCompleted
		log.Info("Step completed", "step", step.ID)
	}

	launchReady()
	for running > 0 {
		if cancelled {
			// Stop selecting new steps; drain in-flight completions.
			handleCompletion(<-done)
			continue
		}
		select {
		case <-ctx.Done():
			cancelled = true
			cancel()
			log.Warn("Workflow cancelled, aborting in-flight steps")
		case msg := <-done:
			handleCompletion(msg)
			launchReady()
		}
	}

	// Anything still pending was never launched: cancelled run or skipped
	// remainder under stop_on_error.
	for i := range states {
		if states[i] == statePending {
			if ctx.Err() != nil {
				states[i] = stateCancelled
			} else {
				states[i] = stateSkipped
			}
		}
	}

	result := w.buildResult(ctx, wctx, states, stepErrors, start)
	log.Info("Workflow finished",
		"status", result.Status,
		"completed", result.StepsCompleted,
		"failed", result.StepsFailed,
		"duration_seconds", result.DurationSeconds)
	return result
}

func (w *Workflow) buildResult(ctx context.Context, wctx *Context, states []stepState, stepErrors map[string]string, start time.Time) *Result {
	completed, failed, skipped := 0, 0, 0
	for _, s := range states {
		switch s {
		case stateCompleted:
			completed++
		case stateFailed:
			failed++
		case stateSkipped, stateCancelled:
			skipped++
		}
	}

	var status Status
	switch {
	case ctx.Err() != nil:
		status = StatusCancelled
	case failed == 0 && skipped == 0:
		status = StatusCompleted
	case completed > 0:
		status = StatusPartialSuccess
	default:
		status = StatusFailed
	}

	return &Result{
		Status:          status,
		DurationSeconds: time.Since(start).Seconds(),
		SuccessRate:     float64(completed) / float64(len(w.steps)) * 100,
		StepResults:     wctx.stepResultsSnapshot(),
		StepErrors:      stepErrors,
		StepsCompleted:  completed,
		StepsFailed:     failed,
		StepsSkipped:    skipped,
	}
}

// runStep executes one step under its deadline, retrying timeouts and
// transport errors within the step's retry budget.
func (w *Workflow) runStep(ctx context.Context, wctx *Context, step Step, opts ExecuteOptions) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Second << uint(attempt-1)
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := w.runStepOnce(ctx, wctx, step, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("step %q retries exhausted: %w", step.ID, lastErr)
}

func (w *Workflow) runStepOnce(ctx context.Context, wctx *Context, step Step, opts ExecuteOptions) (any, error) {
	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout())
	defer cancel()

	switch {
	case step.Func != nil:
		return step.Func(stepCtx, wctx, step)
	case step.Tool != nil:
		if opts.Invoker == nil {
			return nil, fmt.Errorf("step %q: no MCP invoker configured", step.ID)
		}
		result, err := opts.Invoker.Invoke(stepCtx, step.Tool.Server, step.Tool.Tool, step.Parameters)
		if err != nil {
			return nil, err
		}
		return result.Text, nil
	default:
		return nil, fmt.Errorf("step %q has no executable", step.ID)
	}
}

// retryable reports whether a step error consumes the retry budget: step
// deadline expiry and transport failures, per the engine's policy.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mcp.IsTransport(err) {
		return true
	}
	return false
}
