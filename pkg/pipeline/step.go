// Package pipeline provides a typed DAG of steps with a fluent builder and
// a bounded-parallel executor: per-step timeout and retry, a shared
// per-workflow context, cascading skip or stop-on-error failure policy, and
// guaranteed MCP client teardown.
package pipeline

import (
	"context"
	"fmt"
	"time"
)

// StepFunc is a custom step executable. The returned value is published to
// the workflow context under the step id.
type StepFunc func(ctx context.Context, wctx *Context, step Step) (any, error)

// ToolBinding points a step at a named MCP capability instead of a custom
// function.
type ToolBinding struct {
	Server string
	Tool   string
}

// Step is one node of the workflow DAG.
type Step struct {
	ID             string
	Name           string
	Kind           string
	Parameters     map[string]any
	DependsOn      []string
	TimeoutSeconds int
	RetryCount     int

	Func StepFunc
	Tool *ToolBinding
}

// Config controls workflow execution.
type Config struct {
	Name                  string
	MaxParallelSteps      int
	DefaultTimeoutSeconds int
	DefaultRetryCount     int
	StopOnError           bool
}

// Builder accumulates steps fluently. The DAG is valid by construction:
// depends_on may only reference previously declared ids, so cycles are
// impossible.
type Builder struct {
	cfg   Config
	steps []Step
	ids   map[string]bool
	err   error
}

// NewBuilder creates a builder with engine defaults.
func NewBuilder(name string) *Builder {
	return &Builder{
		cfg: Config{
			Name:                  name,
			MaxParallelSteps:      4,
			DefaultTimeoutSeconds: 120,
			DefaultRetryCount:     2,
		},
		ids: make(map[string]bool),
	}
}

// WithConfig overrides execution parameters. Non-positive maxParallel and
// defaultTimeoutSeconds keep the current setting; a negative
// defaultRetryCount keeps the current setting, and zero sets it to zero.
func (b *Builder) WithConfig(maxParallel, defaultTimeoutSeconds, defaultRetryCount int, stopOnError bool) *Builder {
	if maxParallel > 0 {
		b.cfg.MaxParallelSteps = maxParallel
	}
	if defaultTimeoutSeconds > 0 {
		b.cfg.DefaultTimeoutSeconds = defaultTimeoutSeconds
	}
	if defaultRetryCount >= 0 {
		b.cfg.DefaultRetryCount = defaultRetryCount
	}
	b.cfg.StopOnError = stopOnError
	return b
}

// StepOption customizes a step added through the fluent helpers.
type StepOption func(*Step)

// DependsOn declares prerequisite step ids.
func DependsOn(ids ...string) StepOption {
	return func(s *Step) { s.DependsOn = append(s.DependsOn, ids...) }
}

// WithTimeout sets the per-step deadline in seconds.
func WithTimeout(seconds int) StepOption {
	return func(s *Step) { s.TimeoutSeconds = seconds }
}

// WithRetries sets the per-step retry budget.
func WithRetries(count int) StepOption {
	return func(s *Step) { s.RetryCount = count }
}

// WithKind tags the step for UI and logging.
func WithKind(kind string) StepOption {
	return func(s *Step) { s.Kind = kind }
}

// WithParameters attaches the step's parameter map.
func WithParameters(params map[string]any) StepOption {
	return func(s *Step) { s.Parameters = params }
}

// CustomStep adds a step backed by a user function.
func (b *Builder) CustomStep(id, name string, fn StepFunc, opts ...StepOption) *Builder {
	step := Step{ID: id, Name: name, Kind: "custom", Func: fn}
	return b.add(step, opts)
}

// ToolStep adds a step backed by an MCP tool invocation. The tool result's
// text content is published to the context.
func (b *Builder) ToolStep(id, name, server, tool string, params map[string]any, opts ...StepOption) *Builder {
	step := Step{
		ID:         id,
		Name:       name,
		Kind:       "tool",
		Parameters: params,
		Tool:       &ToolBinding{Server: server, Tool: tool},
	}
	return b.add(step, opts)
}

func (b *Builder) add(step Step, opts []StepOption) *Builder {
	if b.err != nil {
		return b
	}
	for _, opt := range opts {
		opt(&step)
	}

	if step.ID == "" {
		b.err = fmt.Errorf("step with empty id")
		return b
	}
	if b.ids[step.ID] {
		b.err = fmt.Errorf("duplicate step id %q", step.ID)
		return b
	}
	for _, dep := range step.DependsOn {
		if !b.ids[dep] {
			b.err = fmt.Errorf("step %q depends on undeclared step %q", step.ID, dep)
			return b
		}
	}
	if step.Func == nil && step.Tool == nil {
		b.err = fmt.Errorf("step %q has neither function nor tool binding", step.ID)
		return b
	}

	if step.TimeoutSeconds <= 0 {
		step.TimeoutSeconds = b.cfg.DefaultTimeoutSeconds
	}
	if step.RetryCount < 0 {
		step.RetryCount = b.cfg.DefaultRetryCount
	}
	if step.RetryCount == 0 {
		step.RetryCount = b.cfg.DefaultRetryCount
	}

	b.ids[step.ID] = true
	b.steps = append(b.steps, step)
	return b
}

// Build returns the executable workflow, or the first construction error.
func (b *Builder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("workflow %q has no steps", b.cfg.Name)
	}
	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)
	return &Workflow{cfg: b.cfg, steps: steps}, nil
}

// Timeout returns the step's deadline as a duration.
func (s Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}
