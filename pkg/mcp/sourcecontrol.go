package mcp

import "context"

// SourceControl is the typed surface over the source-control MCP server
// (fork, branch, commit, PR, search).
type SourceControl struct {
	invoker Invoker
	server  string
}

// NewSourceControl creates a source-control capability bound to a server id.
func NewSourceControl(invoker Invoker, server string) *SourceControl {
	return &SourceControl{invoker: invoker, server: server}
}

// Repository describes an upstream or forked repository.
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

// FileContents is one file fetched from a repository.
type FileContents struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// PullRequest describes an opened pull request.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	Title   string `json:"title"`
}

// CodeSearchResult is one hit from a code search.
type CodeSearchResult struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	HTMLURL    string `json:"html_url"`
}

// GetRepository fetches repository metadata.
func (s *SourceControl) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	result, err := s.invoker.InvokeWithRetry(ctx, s.server, "get_repository", map[string]any{
		"owner": owner,
		"repo":  name,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var repo Repository
	if err := result.DecodeJSON(&repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetFileContents fetches a single file from a repository.
func (s *SourceControl) GetFileContents(ctx context.Context, owner, name, path string) (*FileContents, error) {
	result, err := s.invoker.InvokeWithRetry(ctx, s.server, "get_file_contents", map[string]any{
		"owner": owner,
		"repo":  name,
		"path":  path,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var file FileContents
	if err := result.DecodeJSON(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// ForkRepository forks a repository into the authenticated account.
// Idempotent on the server side: an existing fork is returned as-is.
func (s *SourceControl) ForkRepository(ctx context.Context, owner, name string) (*Repository, error) {
	result, err := s.invoker.InvokeWithRetry(ctx, s.server, "fork_repository", map[string]any{
		"owner": owner,
		"repo":  name,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var fork Repository
	if err := result.DecodeJSON(&fork); err != nil {
		return nil, err
	}
	return &fork, nil
}

// CreateBranch creates branch from fromBranch in owner/name.
func (s *SourceControl) CreateBranch(ctx context.Context, owner, name, branch, fromBranch string) error {
	_, err := s.invoker.InvokeWithRetry(ctx, s.server, "create_branch", map[string]any{
		"owner":       owner,
		"repo":        name,
		"branch":      branch,
		"from_branch": fromBranch,
	}, defaultRetries)
	return err
}

// CreateOrUpdateFile commits content to path on branch with message.
func (s *SourceControl) CreateOrUpdateFile(ctx context.Context, owner, name, path, content, message, branch string) error {
	_, err := s.invoker.InvokeWithRetry(ctx, s.server, "create_or_update_file", map[string]any{
		"owner":   owner,
		"repo":    name,
		"path":    path,
		"content": content,
		"message": message,
		"branch":  branch,
	}, defaultRetries)
	return err
}

// CreatePullRequest opens a PR from head into base on owner/name.
func (s *SourceControl) CreatePullRequest(ctx context.Context, owner, name, title, head, base, body string) (*PullRequest, error) {
	result, err := s.invoker.InvokeWithRetry(ctx, s.server, "create_pull_request", map[string]any{
		"owner": owner,
		"repo":  name,
		"title": title,
		"head":  head,
		"base":  base,
		"body":  body,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	if err := result.DecodeJSON(&pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// SearchCode runs a code search query.
func (s *SourceControl) SearchCode(ctx context.Context, query string) ([]CodeSearchResult, error) {
	result, err := s.invoker.InvokeWithRetry(ctx, s.server, "search_code", map[string]any{
		"query": query,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var hits struct {
		Items []CodeSearchResult `json:"items"`
	}
	if err := result.DecodeJSON(&hits); err != nil {
		return nil, err
	}
	return hits.Items, nil
}
