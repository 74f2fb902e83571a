package pipeline

import (
	"fmt"
	"sync"

	"github.com/graphmcp/decomm/pkg/mcp"
	"github.com/graphmcp/decomm/pkg/worklog"
)

// ContextError reports a missing upstream step result. Steps reading an
// absent key fail immediately.
type ContextError struct {
	Key string
}

// Error returns the formatted message.
func (e *ContextError) Error() string {
	return fmt.Sprintf("missing context value %q", e.Key)
}

// Context is the per-run shared state: step results keyed by step id plus an
// ad-hoc shared map. The executor owns it; steps read and write by key.
type Context struct {
	workflowID string
	clients    *mcp.Clients
	log        *worklog.Log

	mu          sync.RWMutex
	stepResults map[string]any
	shared      map[string]any
}

// NewContext creates a workflow context. clients and log may be nil in
// tests.
func NewContext(workflowID string, clients *mcp.Clients, log *worklog.Log) *Context {
	return &Context{
		workflowID:  workflowID,
		clients:     clients,
		log:         log,
		stepResults: make(map[string]any),
		shared:      make(map[string]any),
	}
}

// WorkflowID returns the run's id.
func (c *Context) WorkflowID() string { return c.workflowID }

// Clients returns the run's MCP client set.
func (c *Context) Clients() *mcp.Clients { return c.clients }

// Log returns the run's workflow log.
func (c *Context) Log() *worklog.Log { return c.log }

// setStepResult publishes a step's result. Exactly one write per key; a
// second write is a defect and is rejected.
func (c *Context) setStepResult(stepID string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.stepResults[stepID]; exists {
		return fmt.Errorf("step result %q written twice", stepID)
	}
	c.stepResults[stepID] = value
	return nil
}

// StepResult returns a completed step's result.
func (c *Context) StepResult(stepID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.stepResults[stepID]
	return value, ok
}

// RequireStepResult returns a completed step's result or a ContextError.
func (c *Context) RequireStepResult(stepID string) (any, error) {
	if value, ok := c.StepResult(stepID); ok {
		return value, nil
	}
	return nil, &ContextError{Key: stepID}
}

// stepResultsSnapshot copies the result map for the aggregated Result.
func (c *Context) stepResultsSnapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.stepResults))
	for k, v := range c.stepResults {
		out[k] = v
	}
	return out
}

// SetShared stores an ad-hoc shared value.
func (c *Context) SetShared(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shared[key] = value
}

// Shared returns an ad-hoc shared value.
func (c *Context) Shared(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.shared[key]
	return value, ok
}

// RequireShared returns a shared value or a ContextError.
func (c *Context) RequireShared(key string) (any, error) {
	if value, ok := c.Shared(key); ok {
		return value, nil
	}
	return nil, &ContextError{Key: key}
}
