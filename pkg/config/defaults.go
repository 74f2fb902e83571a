package config

// DefaultSettings returns the built-in settings. User configuration merges
// over these; any field left unset in decomm.yaml keeps its default.
func DefaultSettings() Settings {
	return Settings{
		Workflow: WorkflowSettings{
			MaxParallelSteps:      4,
			DefaultTimeoutSeconds: 120,
			DefaultRetryCount:     2,
			StopOnError:           false,
			RepoConcurrency:       3,
		},
		Servers: ServerBindings{
			SourceControl: "ovr_github",
			Pack:          "ovr_repomix",
			Chat:          "ovr_slack",
		},
		Slack: SlackSettings{
			TokenEnv: "SLACK_BOT_TOKEN",
		},
		LLM: LLMSettings{
			Model:            "claude-sonnet-4-5",
			MaxTokens:        8192,
			APIKeyEnv:        "ANTHROPIC_API_KEY",
			BatchSize:        3,
			BatchConcurrency: 3,
		},
		GitHub: GitHubSettings{
			TokenEnv: "GITHUB_PERSONAL_ACCESS_TOKEN",
		},
		Dashboard: DashboardSettings{
			Enabled: false,
			Port:    "8080",
		},
	}
}
