package mcp

import "context"

// Chat is the typed surface over the chat MCP server.
type Chat struct {
	invoker Invoker
	server  string
}

// NewChat creates a chat capability bound to a server id.
func NewChat(invoker Invoker, server string) *Chat {
	return &Chat{invoker: invoker, server: server}
}

// PostMessage posts text to a channel. Callers treat failures as
// best-effort: a lost notification never fails a workflow.
func (c *Chat) PostMessage(ctx context.Context, channel, text string) error {
	_, err := c.invoker.InvokeWithRetry(ctx, c.server, "post_message", map[string]any{
		"channel_id": channel,
		"text":       text,
	}, defaultRetries)
	return err
}
