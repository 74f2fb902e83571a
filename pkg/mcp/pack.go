package mcp

import "context"

// RepoPacker is the typed surface over the pack/grep MCP server: bundle a
// remote repository into an addressable artifact and search it by regex.
type RepoPacker struct {
	invoker Invoker
	server  string
}

// NewRepoPacker creates a pack/grep capability bound to a server id.
func NewRepoPacker(invoker Invoker, server string) *RepoPacker {
	return &RepoPacker{invoker: invoker, server: server}
}

// PackResult identifies a packed repository artifact.
type PackResult struct {
	OutputID  string `json:"output_id"`
	TotalSize int64  `json:"total_size"`
}

// GrepMatch is one line hit in a packed archive.
type GrepMatch struct {
	File       string `json:"file"`
	LineNumber int    `json:"line_number"`
	Context    string `json:"context"`
}

// GrepResult is the outcome of a grep over a packed archive.
type GrepResult struct {
	Matches []GrepMatch `json:"matches"`
}

// PackRemoteRepository packs a remote repository and returns the artifact
// id. Include/exclude patterns may be nil.
func (p *RepoPacker) PackRemoteRepository(ctx context.Context, repoURL string, includePatterns, excludePatterns []string) (*PackResult, error) {
	params := map[string]any{"repo_url": repoURL}
	if len(includePatterns) > 0 {
		params["include_patterns"] = includePatterns
	}
	if len(excludePatterns) > 0 {
		params["exclude_patterns"] = excludePatterns
	}

	result, err := p.invoker.InvokeWithRetry(ctx, p.server, "pack_remote_repository", params, defaultRetries)
	if err != nil {
		return nil, err
	}
	var pack PackResult
	if err := result.DecodeJSON(&pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// ReadPacked returns the full content of a packed artifact.
func (p *RepoPacker) ReadPacked(ctx context.Context, outputID string) (string, error) {
	result, err := p.invoker.InvokeWithRetry(ctx, p.server, "read_packed", map[string]any{
		"output_id": outputID,
	}, defaultRetries)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// GrepPacked searches a packed artifact by regex.
func (p *RepoPacker) GrepPacked(ctx context.Context, outputID, pattern string, contextLines int, ignoreCase bool) (*GrepResult, error) {
	result, err := p.invoker.InvokeWithRetry(ctx, p.server, "grep_packed", map[string]any{
		"output_id":     outputID,
		"pattern":       pattern,
		"context_lines": contextLines,
		"ignore_case":   ignoreCase,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var grep GrepResult
	if err := result.DecodeJSON(&grep); err != nil {
		return nil, err
	}
	return &grep, nil
}
