package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, manifest, settings string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0o644))
	if settings != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFileName), []byte(settings), 0o644))
	}
	return dir
}

const minimalManifest = `{
  "mcpServers": {
    "ovr_github": {"command": "github-mcp", "args": ["--stdio"]},
    "ovr_repomix": {"command": "repomix", "args": ["--mcp"]},
    "ovr_slack": {"command": "slack-mcp"}
  }
}`

func TestLoadManifest_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_GH_TOKEN", "ghp_secret")

	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	manifest := `{
  "mcpServers": {
    "ovr_github": {
      "command": "github-mcp",
      "env": {"GITHUB_PERSONAL_ACCESS_TOKEN": "$TEST_GH_TOKEN"}
    }
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	registry, err := LoadManifest(path)
	require.NoError(t, err)

	server, err := registry.Get("ovr_github")
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", server.Env["GITHUB_PERSONAL_ACCESS_TOKEN"])
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestLoadManifest_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadManifest(path)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestLoadManifest_ServerWithoutTransport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {"bad": {}}}`), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestInitialize_DefaultsWhenNoSettingsFile(t *testing.T) {
	dir := writeConfigDir(t, minimalManifest, "")

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Settings.Workflow.MaxParallelSteps)
	assert.Equal(t, 120, cfg.Settings.Workflow.DefaultTimeoutSeconds)
	assert.Equal(t, 3, cfg.Settings.LLM.BatchSize)
	assert.Equal(t, "ovr_github", cfg.Settings.Servers.SourceControl)
}

func TestInitialize_UserSettingsOverrideDefaults(t *testing.T) {
	settings := `
workflow:
  max_parallel_steps: 8
llm:
  batch_size: 5
slack:
  channel: "C0DECOM01"
`
	dir := writeConfigDir(t, minimalManifest, settings)

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Settings.Workflow.MaxParallelSteps)
	assert.Equal(t, 5, cfg.Settings.LLM.BatchSize)
	assert.Equal(t, "C0DECOM01", cfg.Settings.Slack.Channel)
	// Untouched fields keep defaults.
	assert.Equal(t, 2, cfg.Settings.Workflow.DefaultRetryCount)
	assert.True(t, cfg.Settings.Slack.SlackEnabled())
}

func TestInitialize_RejectsUnknownCapabilityBinding(t *testing.T) {
	settings := `
servers:
  pack: not_in_manifest
`
	dir := writeConfigDir(t, minimalManifest, settings)

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestSlackEnabled(t *testing.T) {
	off := false
	tests := []struct {
		name     string
		settings SlackSettings
		want     bool
	}{
		{"explicit disable wins", SlackSettings{Enabled: &off, Channel: "C1"}, false},
		{"channel implies enabled", SlackSettings{Channel: "C1"}, true},
		{"no channel, no flag", SlackSettings{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.SlackEnabled())
		})
	}
}
