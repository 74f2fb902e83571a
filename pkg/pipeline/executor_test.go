package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmcp/decomm/pkg/mcp"
)

func okStep(value any) StepFunc {
	return func(context.Context, *Context, Step) (any, error) {
		return value, nil
	}
}

func failStep(err error) StepFunc {
	return func(context.Context, *Context, Step) (any, error) {
		return nil, err
	}
}

func TestBuilder_RejectsDuplicateID(t *testing.T) {
	_, err := NewBuilder("wf").
		CustomStep("a", "A", okStep(1)).
		CustomStep("a", "A again", okStep(2)).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestBuilder_RejectsUndeclaredDependency(t *testing.T) {
	_, err := NewBuilder("wf").
		CustomStep("a", "A", okStep(1), DependsOn("ghost")).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}

func TestBuilder_RejectsEmptyWorkflow(t *testing.T) {
	_, err := NewBuilder("wf").Build()
	require.Error(t, err)
}

func TestExecute_LinearChainPublishesResults(t *testing.T) {
	wf, err := NewBuilder("wf").
		CustomStep("first", "First", okStep("one")).
		CustomStep("second", "Second", func(_ context.Context, wctx *Context, _ Step) (any, error) {
			upstream, err := wctx.RequireStepResult("first")
			if err != nil {
				return nil, err
			}
			return upstream.(string) + "+two", nil
		}, DependsOn("first")).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{WorkflowID: "run-1"})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.StepsCompleted)
	assert.Equal(t, "one+two", result.StepResults["second"])
	assert.InDelta(t, 100.0, result.SuccessRate, 0.01)

	// Every result key is a declared step id.
	declared := map[string]bool{"first": true, "second": true}
	for id := range result.StepResults {
		assert.True(t, declared[id], "unexpected result key %q", id)
	}
}

func TestExecute_DependencyOrderingRespected(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(id string) StepFunc {
		return func(context.Context, *Context, Step) (any, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return id, nil
		}
	}

	wf, err := NewBuilder("wf").
		CustomStep("a", "A", record("a")).
		CustomStep("b", "B", record("b"), DependsOn("a")).
		CustomStep("c", "C", record("c"), DependsOn("b")).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{})
	require.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestExecute_ParallelismBounded(t *testing.T) {
	var current, peak atomic.Int32
	slow := func(context.Context, *Context, Step) (any, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	}

	builder := NewBuilder("wf").WithConfig(2, 0, 0, false)
	for i := 0; i < 6; i++ {
		builder.CustomStep(fmt.Sprintf("s%d", i), "S", slow)
	}
	wf, err := builder.Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{})
	require.Equal(t, StatusCompleted, result.Status)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecute_FailureCascadesSkipsDependents(t *testing.T) {
	wf, err := NewBuilder("wf").
		CustomStep("bad", "Bad", failStep(errors.New("boom"))).
		CustomStep("child", "Child", okStep(1), DependsOn("bad")).
		CustomStep("grandchild", "Grandchild", okStep(2), DependsOn("child")).
		CustomStep("independent", "Independent", okStep(3)).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{})

	assert.Equal(t, StatusPartialSuccess, result.Status)
	assert.Equal(t, 1, result.StepsCompleted)
	assert.Equal(t, 1, result.StepsFailed)
	assert.Equal(t, 2, result.StepsSkipped)
	assert.Contains(t, result.StepErrors["bad"], "boom")
	_, childRan := result.StepResults["child"]
	assert.False(t, childRan)
	assert.Equal(t, 3, result.StepResults["independent"])
}

func TestExecute_StopOnErrorCancelsPending(t *testing.T) {
	wf, err := NewBuilder("wf").
		WithConfig(1, 0, 0, true).
		CustomStep("bad", "Bad", failStep(errors.New("fatal"))).
		CustomStep("next", "Next", okStep(1)).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Zero(t, result.StepsCompleted)
	assert.Equal(t, 1, result.StepsFailed)
	assert.Equal(t, 1, result.StepsSkipped)
}

func TestExecute_TransportErrorRetried(t *testing.T) {
	var attempts atomic.Int32
	flaky := func(context.Context, *Context, Step) (any, error) {
		if attempts.Add(1) < 2 {
			return nil, &mcp.TransportError{Server: "ovr_repomix", Err: errors.New("pipe closed")}
		}
		return "recovered", nil
	}

	wf, err := NewBuilder("wf").
		CustomStep("flaky", "Flaky", flaky, WithRetries(2)).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "recovered", result.StepResults["flaky"])
	assert.EqualValues(t, 2, attempts.Load())
}

func TestExecute_ToolErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	bad := func(context.Context, *Context, Step) (any, error) {
		attempts.Add(1)
		return nil, &mcp.ToolError{Server: "ovr_github", Tool: "create_branch", Message: "exists"}
	}

	wf, err := NewBuilder("wf").
		CustomStep("bad", "Bad", bad, WithRetries(3)).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{})

	assert.Equal(t, StatusFailed, result.Status)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestExecute_StepTimeoutEnforced(t *testing.T) {
	hang := func(ctx context.Context, _ *Context, _ Step) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	wf, err := NewBuilder("wf").
		CustomStep("hang", "Hang", hang, WithTimeout(1), WithRetries(1)).
		Build()
	require.NoError(t, err)

	start := time.Now()
	result := wf.Execute(context.Background(), ExecuteOptions{})

	assert.Equal(t, StatusFailed, result.Status)
	// One initial attempt (1s) + backoff (1s) + retry (1s), well under the
	// no-timeout hang.
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, result.StepErrors["hang"], "retries exhausted")
}

func TestExecute_ExternalCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	wf, err := NewBuilder("wf").
		CustomStep("slow", "Slow", func(ctx context.Context, _ *Context, _ Step) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}, WithRetries(0)).
		CustomStep("after", "After", okStep(1), DependsOn("slow")).
		Build()
	require.NoError(t, err)

	go func() {
		<-started
		cancel()
	}()

	result := wf.Execute(ctx, ExecuteOptions{})

	assert.Equal(t, StatusCancelled, result.Status)
	assert.Zero(t, result.StepsCompleted)
}

func TestExecute_ClosesClients(t *testing.T) {
	registry := newTestRegistry()
	clients := mcp.NewFactory(registry, testBindings()).Open()

	wf, err := NewBuilder("wf").
		CustomStep("only", "Only", okStep(1)).
		Build()
	require.NoError(t, err)

	result := wf.Execute(context.Background(), ExecuteOptions{Clients: clients})
	require.Equal(t, StatusCompleted, result.Status)

	// Close is idempotent, so double-closing here proves the engine already
	// released the clients without erroring.
	assert.NoError(t, clients.Close())
}

func TestContext_SecondWriteRejected(t *testing.T) {
	wctx := NewContext("run", nil, nil)
	require.NoError(t, wctx.setStepResult("a", 1))
	err := wctx.setStepResult("a", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "written twice")

	value, ok := wctx.StepResult("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)
}

func TestContext_RequireMissingIsContextError(t *testing.T) {
	wctx := NewContext("run", nil, nil)

	_, err := wctx.RequireStepResult("missing")
	var ctxErr *ContextError
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, "missing", ctxErr.Key)
}
