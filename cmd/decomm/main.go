// decomm drives database decommissioning across a fleet of repositories:
// pattern discovery, rule-based and agentic refactoring, PR creation, and
// Slack progress notifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/graphmcp/decomm/pkg/api"
	"github.com/graphmcp/decomm/pkg/config"
	"github.com/graphmcp/decomm/pkg/decommission"
	"github.com/graphmcp/decomm/pkg/llm"
	"github.com/graphmcp/decomm/pkg/mcp"
	"github.com/graphmcp/decomm/pkg/pipeline"
	"github.com/graphmcp/decomm/pkg/slack"
	"github.com/graphmcp/decomm/pkg/worklog"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	os.Exit(run())
}

func run() int {
	database := flag.String("database", "", "Database identifier to decommission")
	repos := flag.String("repos", "", "Comma-separated target repository URLs")
	slackChannel := flag.String("slack-channel", "", "Slack channel id for progress notifications")
	configDir := flag.String("config", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	mode := flag.String("mode", "workflow", "Run mode: workflow, dashboard, or e2e")
	flag.Parse()

	if *database == "" || *repos == "" {
		fmt.Fprintln(os.Stderr, "usage: decomm --database <name> --repos <url,url,...> [--slack-channel <id>] [--config <path>] [--mode workflow|dashboard|e2e]")
		return exitFailure
	}

	// Load .env from the config directory before anything reads secrets.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("No %s file, continuing with existing environment", envPath)
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Printf("Failed to initialize configuration: %v", err)
		return exitFailure
	}
	if *slackChannel != "" {
		cfg.Settings.Slack.Channel = *slackChannel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targetRepos := splitRepos(*repos)
	logs := worklog.NewRegistry()

	var completer llm.Completer
	if client, err := llm.NewClient(cfg.Settings.LLM); err != nil {
		log.Printf("Warning: agentic processing disabled: %v", err)
	} else {
		completer = client
	}

	var notifier *slack.Service
	if cfg.Settings.Slack.SlackEnabled() {
		notifier = slack.NewService(slack.ServiceConfig{
			Token:   os.Getenv(cfg.Settings.Slack.TokenEnv),
			Channel: cfg.Settings.Slack.Channel,
		})
		if notifier == nil {
			log.Printf("Warning: Slack notifications disabled (missing token or channel)")
		}
	}

	runner := decommission.NewRunner(
		decommission.Params{
			DatabaseName: *database,
			TargetRepos:  targetRepos,
			SlackChannel: cfg.Settings.Slack.Channel,
		},
		decommission.Deps{
			Settings:   cfg.Settings,
			Clients:    mcp.NewFactory(cfg.Servers, cfg.Settings.Servers).Open(),
			Completer:  completer,
			Slack:      notifier,
			Logs:       logs,
			AllowNoLLM: completer == nil,
		})

	log.Printf("Starting decommission of %q across %d repositories (workflow %s)",
		*database, len(targetRepos), runner.WorkflowID())

	// Dashboard mode serves the log API alongside the workflow.
	if *mode == "dashboard" || cfg.Settings.Dashboard.Enabled {
		gin.SetMode(getEnv("GIN_MODE", gin.ReleaseMode))
		server := api.NewServer(logs)
		go func() {
			if err := server.Start(ctx, cfg.Settings.Dashboard.Port); err != nil {
				log.Printf("Dashboard server error: %v", err)
			}
		}()
	}

	result, err := runner.Run(ctx)
	if err != nil {
		log.Printf("Workflow construction failed: %v", err)
		return exitFailure
	}

	log.Printf("Workflow %s finished: status=%s completed=%d failed=%d success_rate=%.1f%%",
		runner.WorkflowID(), result.Status, result.StepsCompleted, result.StepsFailed, result.SuccessRate)

	// e2e mode prints the full log snapshot for inspection.
	if *mode == "e2e" {
		if snapshot, err := runner.Log().SnapshotJSON(); err == nil {
			fmt.Println(string(snapshot))
		}
	}

	switch result.Status {
	case pipeline.StatusCancelled:
		return exitInterrupted
	case pipeline.StatusCompleted:
		return exitOK
	case pipeline.StatusPartialSuccess:
		// Partial runs still shipped something; the log carries the details.
		return exitOK
	default:
		return exitFailure
	}
}

// splitRepos parses the comma-separated repo list, dropping empties.
func splitRepos(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
