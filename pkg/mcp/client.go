// Package mcp provides the MCP (Model Context Protocol) client
// infrastructure the pipeline uses to reach external tools: source control,
// repository pack/grep, chat, and the optional filesystem server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/graphmcp/decomm/pkg/config"
)

// appName identifies this client to MCP servers during the handshake.
const appName = "decomm"

// Result is a decoded tool invocation result.
type Result struct {
	// Text is the concatenated text content of the result.
	Text string

	// Structured is the server's structured content, when provided.
	Structured any
}

// DecodeJSON unmarshals the result payload into out. Structured content is
// preferred; the text content is parsed as JSON otherwise.
func (r *Result) DecodeJSON(out any) error {
	if r.Structured != nil {
		data, err := json.Marshal(r.Structured)
		if err != nil {
			return fmt.Errorf("re-encode structured content: %w", err)
		}
		return json.Unmarshal(data, out)
	}
	if err := json.Unmarshal([]byte(r.Text), out); err != nil {
		return fmt.Errorf("decode tool result: %w", err)
	}
	return nil
}

// Client manages MCP SDK sessions for the servers named in the manifest.
// Sessions are created lazily on first use within a run and torn down by
// Close. Thread-safe: invocations may come from parallel pipeline steps.
type Client struct {
	registry *config.ServerRegistry

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession
	closed   bool

	// Per-server mutex for session creation and recreation, so parallel
	// steps don't spawn duplicate transports.
	initMu sync.Map // serverID → *sync.Mutex

	logger *slog.Logger
}

// NewClient creates a client over the given server registry. No transports
// are spawned until the first invocation.
func NewClient(registry *config.ServerRegistry) *Client {
	return &Client{
		registry: registry,
		sessions: make(map[string]*mcpsdk.ClientSession),
		logger:   slog.Default().With("component", "mcp-client"),
	}
}

// Invoke executes a tool call on the named server. Failures are typed:
// *TransportError for connection/process loss, *ToolError for structured
// server failures (including results flagged isError).
func (c *Client) Invoke(ctx context.Context, serverID, toolName string, params map[string]any) (*Result, error) {
	session, err := c.ensureSession(ctx, serverID)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	callResult, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: params,
	})
	if err != nil {
		if isTransportFailure(err) {
			return nil, &TransportError{Server: serverID, Tool: toolName, Err: err}
		}
		return nil, &ToolError{Server: serverID, Tool: toolName, Message: err.Error()}
	}

	result := &Result{
		Text:       extractTextContent(callResult),
		Structured: callResult.StructuredContent,
	}
	if callResult.IsError {
		return nil, &ToolError{Server: serverID, Tool: toolName, Message: result.Text}
	}
	return result, nil
}

// InvokeWithRetry executes a tool call, retrying transport failures up to
// retryCount times with exponential backoff (2^attempt seconds, capped).
// Tool errors surface immediately. The session is recreated before each
// retry since a transport failure usually means the server process is gone.
func (c *Client) InvokeWithRetry(ctx context.Context, serverID, toolName string, params map[string]any, retryCount int) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDuration(attempt - 1)):
			case <-ctx.Done():
				return nil, &TransportError{Server: serverID, Tool: toolName, Err: ctx.Err()}
			}

			if err := c.recreateSession(ctx, serverID); err != nil {
				lastErr = err
				continue
			}
			c.logger.Info("Retrying MCP call",
				"server", serverID, "tool", toolName, "attempt", attempt)
		}

		result, err := c.Invoke(ctx, serverID, toolName, params)
		if err == nil {
			return result, nil
		}
		if !IsTransport(err) {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("MCP call transport failure",
			"server", serverID, "tool", toolName, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("retries exhausted for %s.%s: %w", serverID, toolName, lastErr)
}

// ensureSession returns the session for a server, connecting on first use.
func (c *Client) ensureSession(ctx context.Context, serverID string) (*mcpsdk.ClientSession, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, &TransportError{Server: serverID, Err: fmt.Errorf("client is closed")}
	}
	if session, ok := c.sessions[serverID]; ok {
		c.mu.RUnlock()
		return session, nil
	}
	c.mu.RUnlock()

	muI, _ := c.initMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	return c.connectLocked(ctx, serverID)
}

// connectLocked establishes a session. Caller must hold the per-server
// init mutex.
func (c *Client) connectLocked(ctx context.Context, serverID string) (*mcpsdk.ClientSession, error) {
	// Re-check under the per-server lock: another goroutine may have won.
	c.mu.RLock()
	if session, ok := c.sessions[serverID]; ok {
		c.mu.RUnlock()
		return session, nil
	}
	c.mu.RUnlock()

	serverCfg, err := c.registry.Get(serverID)
	if err != nil {
		return nil, &ToolError{Server: serverID, Message: err.Error()}
	}

	transport, err := createTransport(serverCfg)
	if err != nil {
		return nil, &TransportError{Server: serverID, Err: err}
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: appName, Version: "dev"}, nil)
	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		// Close the transport if it holds resources (stdio child process);
		// the SDK handles most failure paths but not all transport types.
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, &TransportError{Server: serverID, Err: err}
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	c.mu.Unlock()

	c.logger.Info("MCP server connected", "server", serverID)
	return session, nil
}

// recreateSession tears down and reconnects the session for a server.
func (c *Client) recreateSession(ctx context.Context, serverID string) error {
	muI, _ := c.initMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, ok := c.sessions[serverID]; ok {
		_ = session.Close()
		delete(c.sessions, serverID)
	}
	c.mu.Unlock()

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()

	_, err := c.connectLocked(reinitCtx, serverID)
	return err
}

// Close shuts down all sessions and transports. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for id, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", id, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)
	return firstErr
}

// extractTextContent concatenates the text items of a tool result. Non-text
// content (images, embedded resources) is skipped.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
