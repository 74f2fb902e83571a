package slack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphmcp/decomm/pkg/worklog"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// Service delivers decommissioning progress notifications.
// Nil-safe: all methods are no-ops when the service is nil. Fail-open:
// delivery errors are logged as workflow warnings, never returned.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a notification service. Returns nil if Token or
// Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// post delivers one message, logging failures to the workflow log.
func (s *Service) post(ctx context.Context, log *worklog.Log, text string) {
	if s == nil {
		return
	}
	if err := s.client.PostMessage(ctx, text); err != nil {
		s.logger.Warn("Slack notification failed", "error", err)
		if log != nil {
			log.Warning(fmt.Sprintf("Slack notification failed: %v", err))
		}
	}
}

// NotifyRepoStarted announces that a repository's decommission pass begins.
func (s *Service) NotifyRepoStarted(ctx context.Context, log *worklog.Log, databaseName, repo string, index, total int) {
	s.post(ctx, log, fmt.Sprintf(
		"🚀 Starting decommission of '%s' in repository %d/%d: `%s`",
		databaseName, index, total, repo))
}

// NotifyRepoCompleted announces a repository's discovery outcome.
func (s *Service) NotifyRepoCompleted(ctx context.Context, log *worklog.Log, databaseName, repo string, filesFound int) {
	found := "No"
	if filesFound > 0 {
		found = fmt.Sprintf("%d", filesFound)
	}
	s.post(ctx, log, fmt.Sprintf(
		"ℹ️ Repository `%s` completed: %s '%s' database references found",
		repo, found, databaseName))
}

// NotifyWorkflowCompleted announces the final totals.
func (s *Service) NotifyWorkflowCompleted(ctx context.Context, log *worklog.Log, databaseName string, repos, filesProcessed, filesModified int) {
	s.post(ctx, log, fmt.Sprintf(
		"🎉 Database decommissioning completed for '%s'!\n"+
			"📊 Summary: %d repositories processed, %d files processed, %d files modified",
		databaseName, repos, filesProcessed, filesModified))
}

// NotifyWorkflowFailed announces a terminal failure.
func (s *Service) NotifyWorkflowFailed(ctx context.Context, log *worklog.Log, databaseName string, reason string) {
	s.post(ctx, log, fmt.Sprintf(
		"❌ Database decommissioning for '%s' failed: %s", databaseName, reason))
}
