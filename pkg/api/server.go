// Package api serves the live dashboard: workflow log snapshots, summaries,
// and an SSE stream of new entries.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/graphmcp/decomm/pkg/worklog"
)

// streamPollInterval is how often the SSE handler checks for new entries.
const streamPollInterval = 500 * time.Millisecond

// Server is the dashboard HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logs       *worklog.Registry
}

// NewServer creates a dashboard server over a log registry.
func NewServer(logs *worklog.Registry) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, logs: logs}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/workflows", s.handleListWorkflows)
	api.GET("/workflows/:id/log", s.handleLogSnapshot)
	api.GET("/workflows/:id/summary", s.handleSummary)
	api.GET("/workflows/:id/stream", s.handleStream)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"workflows": len(s.logs.WorkflowIDs()),
	})
}

func (s *Server) handleListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflow_ids": s.logs.WorkflowIDs()})
}

func (s *Server) handleLogSnapshot(c *gin.Context) {
	log, ok := s.logs.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}

	snapshot, err := log.SnapshotJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", snapshot)
}

func (s *Server) handleSummary(c *gin.Context) {
	log, ok := s.logs.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, log.Summary())
}

// handleStream sends existing entries then polls for new ones, as SSE
// events named "entry". The connection closes when the client goes away.
func (s *Server) handleStream(c *gin.Context) {
	log, ok := s.logs.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}

	var sinceID int64
	if since := c.Query("since"); since != "" {
		if parsed, err := strconv.ParseInt(since, 10, 64); err == nil {
			sinceID = parsed
		}
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		for _, entry := range log.EntriesSince(sinceID) {
			c.SSEvent("entry", entry)
			sinceID = entry.EntryID
		}
		c.Writer.Flush()

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// Start runs the server until ctx is cancelled, then shuts down within the
// grace period.
func (s *Server) Start(ctx context.Context, port string) error {
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Dashboard API listening", "port", port)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
