package mcp

import "context"

// Invoker is the uniform invocation contract capabilities are built on.
// *Client is the production implementation; tests substitute fakes.
type Invoker interface {
	Invoke(ctx context.Context, serverID, toolName string, params map[string]any) (*Result, error)
	InvokeWithRetry(ctx context.Context, serverID, toolName string, params map[string]any, retryCount int) (*Result, error)
}

var _ Invoker = (*Client)(nil)

// defaultRetries is the transport-retry budget capability wrappers use for
// their own calls. Step-level retry policy sits above this in the pipeline.
const defaultRetries = 2
