package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmcp/decomm/pkg/config"
)

// fakeInvoker records calls and replays canned results.
type fakeInvoker struct {
	calls   []fakeCall
	results map[string]*Result
	errs    map[string]error
}

type fakeCall struct {
	server string
	tool   string
	params map[string]any
}

func (f *fakeInvoker) Invoke(_ context.Context, server, tool string, params map[string]any) (*Result, error) {
	f.calls = append(f.calls, fakeCall{server, tool, params})
	if err, ok := f.errs[tool]; ok {
		return nil, err
	}
	if res, ok := f.results[tool]; ok {
		return res, nil
	}
	return &Result{Text: "{}"}, nil
}

func (f *fakeInvoker) InvokeWithRetry(ctx context.Context, server, tool string, params map[string]any, _ int) (*Result, error) {
	return f.Invoke(ctx, server, tool, params)
}

func TestSourceControl_CreatePullRequest(t *testing.T) {
	fake := &fakeInvoker{results: map[string]*Result{
		"create_pull_request": {Text: `{"number": 42, "html_url": "https://github.com/acme/data/pull/42"}`},
	}}
	sc := NewSourceControl(fake, "ovr_github")

	pr, err := sc.CreatePullRequest(context.Background(), "acme", "data",
		"Database Decommission: Remove periodic_table references",
		"bot:decommission-periodic_table-1722500000", "main", "body")
	require.NoError(t, err)

	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "https://github.com/acme/data/pull/42", pr.HTMLURL)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "ovr_github", fake.calls[0].server)
	assert.Equal(t, "main", fake.calls[0].params["base"])
}

func TestSourceControl_ForkDecodesStructuredContent(t *testing.T) {
	fake := &fakeInvoker{results: map[string]*Result{
		"fork_repository": {
			Text:       "forked",
			Structured: map[string]any{"owner": "bot", "name": "data", "default_branch": "main"},
		},
	}}
	sc := NewSourceControl(fake, "ovr_github")

	fork, err := sc.ForkRepository(context.Background(), "acme", "data")
	require.NoError(t, err)
	assert.Equal(t, "bot", fork.Owner)
	assert.Equal(t, "main", fork.DefaultBranch)
}

func TestRepoPacker_PackAndGrep(t *testing.T) {
	fake := &fakeInvoker{results: map[string]*Result{
		"pack_remote_repository": {Text: `{"output_id": "out-1", "total_size": 2048}`},
		"grep_packed":            {Text: `{"matches": [{"file": "db/schema.sql", "line_number": 3, "context": "CREATE DATABASE periodic_table;"}]}`},
	}}
	packer := NewRepoPacker(fake, "ovr_repomix")

	pack, err := packer.PackRemoteRepository(context.Background(),
		"https://github.com/acme/data", []string{"**/*.sql"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "out-1", pack.OutputID)
	assert.EqualValues(t, 2048, pack.TotalSize)

	grep, err := packer.GrepPacked(context.Background(), pack.OutputID, "periodic_table", 0, true)
	require.NoError(t, err)
	require.Len(t, grep.Matches, 1)
	assert.Equal(t, "db/schema.sql", grep.Matches[0].File)
	assert.Equal(t, 3, grep.Matches[0].LineNumber)

	// Grep call carries the case-insensitivity flag.
	assert.Equal(t, true, fake.calls[1].params["ignore_case"])
}

func TestChat_PostMessage(t *testing.T) {
	fake := &fakeInvoker{}
	chat := NewChat(fake, "ovr_slack")

	require.NoError(t, chat.PostMessage(context.Background(), "C0DECOM01", "starting"))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "post_message", fake.calls[0].tool)
	assert.Equal(t, "C0DECOM01", fake.calls[0].params["channel_id"])
}

func TestResult_DecodeJSONPrefersStructured(t *testing.T) {
	res := &Result{
		Text:       `{"output_id": "from-text"}`,
		Structured: map[string]any{"output_id": "from-structured"},
	}
	var pack PackResult
	require.NoError(t, res.DecodeJSON(&pack))
	assert.Equal(t, "from-structured", pack.OutputID)
}

func TestClient_InvokeWithRetry_ToolErrorNotRetried(t *testing.T) {
	// Unknown server surfaces as a ToolError from the registry lookup, which
	// must not consume the retry budget.
	client := NewClient(config.NewServerRegistry(nil))
	t.Cleanup(func() { _ = client.Close() })

	_, err := client.InvokeWithRetry(context.Background(), "missing", "any_tool", nil, 3)
	require.Error(t, err)
	assert.True(t, IsTool(err))
}

func TestClient_CloseIdempotent(t *testing.T) {
	client := NewClient(config.NewServerRegistry(nil))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	// Invocations after close fail as transport errors.
	_, err := client.Invoke(context.Background(), "any", "tool", nil)
	assert.True(t, IsTransport(err))
}

func TestFactory_OpenAndCloseOnce(t *testing.T) {
	registry := config.NewServerRegistry(map[string]*config.ServerConfig{
		"ovr_github":  {Command: "github-mcp"},
		"ovr_repomix": {Command: "repomix"},
		"ovr_slack":   {Command: "slack-mcp"},
	})
	factory := NewFactory(registry, config.ServerBindings{
		SourceControl: "ovr_github",
		Pack:          "ovr_repomix",
		Chat:          "ovr_slack",
	})

	clients := factory.Open()
	require.NotNil(t, clients.SourceControl)
	require.NotNil(t, clients.Packer)
	require.NotNil(t, clients.Chat)
	assert.Nil(t, clients.Filesystem)

	require.NoError(t, clients.Close())
	require.NoError(t, clients.Close())
}
