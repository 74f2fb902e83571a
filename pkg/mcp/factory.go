package mcp

import (
	"log/slog"
	"sync"

	"github.com/graphmcp/decomm/pkg/config"
)

// Factory creates per-run client sets from the server manifest and
// capability bindings.
type Factory struct {
	registry *config.ServerRegistry
	bindings config.ServerBindings
}

// NewFactory creates a factory.
func NewFactory(registry *config.ServerRegistry, bindings config.ServerBindings) *Factory {
	return &Factory{registry: registry, bindings: bindings}
}

// Clients is the set of capabilities for a single workflow run. Transports
// spawn lazily on first invocation; Close tears everything down exactly
// once. Not reused across runs.
type Clients struct {
	SourceControl *SourceControl
	Packer        *RepoPacker
	Chat          *Chat
	Filesystem    *Filesystem // nil when no filesystem server is bound

	client    *Client
	closeOnce sync.Once
	closeErr  error
}

// Open creates the client set for one run.
func (f *Factory) Open() *Clients {
	client := NewClient(f.registry)
	clients := &Clients{
		SourceControl: NewSourceControl(client, f.bindings.SourceControl),
		Packer:        NewRepoPacker(client, f.bindings.Pack),
		Chat:          NewChat(client, f.bindings.Chat),
		client:        client,
	}
	if f.bindings.Filesystem != "" {
		clients.Filesystem = NewFilesystem(client, f.bindings.Filesystem)
	}
	return clients
}

// Close releases all transports. Safe to call from any teardown path; only
// the first call does work.
func (c *Clients) Close() error {
	c.closeOnce.Do(func() {
		if c.client == nil {
			return
		}
		c.closeErr = c.client.Close()
		if c.closeErr != nil {
			slog.Warn("Error closing MCP clients", "error", c.closeErr)
		}
	})
	return c.closeErr
}
