package mcp

import "github.com/graphmcp/decomm/pkg/config"

// NewClientsWithInvoker builds a Clients set over an arbitrary Invoker.
// Intended for tests: capability wrappers run against a fake without any
// transport. Close is a no-op.
func NewClientsWithInvoker(invoker Invoker, bindings config.ServerBindings) *Clients {
	clients := &Clients{
		SourceControl: NewSourceControl(invoker, bindings.SourceControl),
		Packer:        NewRepoPacker(invoker, bindings.Pack),
		Chat:          NewChat(invoker, bindings.Chat),
	}
	if bindings.Filesystem != "" {
		clients.Filesystem = NewFilesystem(invoker, bindings.Filesystem)
	}
	return clients
}
