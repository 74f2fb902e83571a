package mcp

import "context"

// Filesystem is the typed surface over the optional filesystem MCP server,
// used by validation flows.
type Filesystem struct {
	invoker Invoker
	server  string
}

// NewFilesystem creates a filesystem capability bound to a server id.
func NewFilesystem(invoker Invoker, server string) *Filesystem {
	return &Filesystem{invoker: invoker, server: server}
}

// ReadFile returns the content of a file.
func (f *Filesystem) ReadFile(ctx context.Context, path string) (string, error) {
	result, err := f.invoker.InvokeWithRetry(ctx, f.server, "read_file", map[string]any{
		"path": path,
	}, defaultRetries)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// WriteFile writes content to a file.
func (f *Filesystem) WriteFile(ctx context.Context, path, content string) error {
	_, err := f.invoker.InvokeWithRetry(ctx, f.server, "write_file", map[string]any{
		"path":    path,
		"content": content,
	}, defaultRetries)
	return err
}

// ListDirectory lists the entries of a directory.
func (f *Filesystem) ListDirectory(ctx context.Context, path string) ([]string, error) {
	result, err := f.invoker.InvokeWithRetry(ctx, f.server, "list_directory", map[string]any{
		"path": path,
	}, defaultRetries)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Entries []string `json:"entries"`
	}
	if err := result.DecodeJSON(&listing); err != nil {
		return nil, err
	}
	return listing.Entries, nil
}
