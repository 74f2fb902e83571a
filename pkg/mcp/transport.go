package mcp

import (
	"fmt"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/graphmcp/decomm/pkg/config"
)

// createTransport creates an MCP SDK transport from a manifest entry. A
// command spawns a stdio child process; a URL selects streamable HTTP or
// SSE.
func createTransport(cfg *config.ServerConfig) (mcpsdk.Transport, error) {
	switch {
	case cfg.Command != "":
		return createStdioTransport(cfg), nil
	case cfg.URL != "" && cfg.SSE:
		return &mcpsdk.SSEClientTransport{Endpoint: cfg.URL}, nil
	case cfg.URL != "":
		return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}, nil
	default:
		return nil, fmt.Errorf("server entry has neither command nor url")
	}
}

func createStdioTransport(cfg *config.ServerConfig) *mcpsdk.CommandTransport {
	cmd := exec.Command(cfg.Command, cfg.Args...)

	// Inherit parent environment + manifest overrides. $VAR references are
	// already resolved by the manifest loader.
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	return &mcpsdk.CommandTransport{Command: cmd}
}
