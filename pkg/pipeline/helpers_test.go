package pipeline

import (
	"github.com/graphmcp/decomm/pkg/config"
)

func newTestRegistry() *config.ServerRegistry {
	return config.NewServerRegistry(map[string]*config.ServerConfig{
		"ovr_github":  {Command: "github-mcp"},
		"ovr_repomix": {Command: "repomix"},
		"ovr_slack":   {Command: "slack-mcp"},
	})
}

func testBindings() config.ServerBindings {
	return config.ServerBindings{
		SourceControl: "ovr_github",
		Pack:          "ovr_repomix",
		Chat:          "ovr_slack",
	}
}
