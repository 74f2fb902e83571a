// Package agentic batches files whose refactoring needs semantic judgment
// beyond regex rules to an LLM, and applies the returned rewrites.
package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/discovery"
	"github.com/graphmcp/decomm/pkg/llm"
	"github.com/graphmcp/decomm/pkg/rules"
	"github.com/graphmcp/decomm/pkg/worklog"
)

// Candidate is one file queued for agentic processing.
type Candidate struct {
	Path           string
	Content        string
	MatchCount     int
	Classification classify.Result
}

// agenticMatchThreshold: Python/Shell files with at least this many hits go
// to the agent instead of (or in addition to) deterministic rules.
const agenticMatchThreshold = 2

// SelectCandidates picks the discovery matches that need semantic judgment:
// Python or Shell files with enough hits, plus any file whose framework tags
// select an empty deterministic rule set.
func SelectCandidates(engine *rules.Engine, files []discovery.FileMatch) []Candidate {
	var out []Candidate
	for _, f := range files {
		needsAgent := false
		switch f.SourceType {
		case classify.Python, classify.Shell:
			needsAgent = f.MatchCount >= agenticMatchThreshold
		}
		if !needsAgent && len(engine.RulesFor(f.SourceType, f.Classification.DetectedFrameworks)) == 0 {
			needsAgent = true
		}
		if needsAgent {
			out = append(out, Candidate{
				Path:           f.Path,
				Content:        f.Content,
				MatchCount:     f.MatchCount,
				Classification: f.Classification,
			})
		}
	}
	return out
}

// CommitTarget designates where modified files are committed. Nil means the
// caller publishes the returned modified contents itself.
type CommitTarget struct {
	Committer rules.Committer
	Owner     string
	Repo      string
	Branch    string
}

// Processor groups candidates by source type, batches them, and drives one
// LLM call per batch.
type Processor struct {
	completer        llm.Completer
	rulesEngine      *rules.Engine
	batchSize        int
	batchConcurrency int
	logger           *slog.Logger
}

// NewProcessor creates a processor. batchSize bounds LLM cost per call;
// batchConcurrency bounds parallel calls within a source-type group.
func NewProcessor(completer llm.Completer, rulesEngine *rules.Engine, batchSize, batchConcurrency int) *Processor {
	if batchSize < 1 {
		batchSize = 3
	}
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	return &Processor{
		completer:        completer,
		rulesEngine:      rulesEngine,
		batchSize:        batchSize,
		batchConcurrency: batchConcurrency,
		logger:           slog.Default().With("component", "agentic-processor"),
	}
}

// agentSystemPrompt instructs the model to answer with JSON only.
const agentSystemPrompt = "You are an expert code refactoring agent. " +
	"Respond with a single JSON object and nothing else."

// batchResponse is the JSON shape the agent returns per file.
type batchResponse map[string]struct {
	ModifiedContent *string `json:"modified_content"`
}

// ProcessFiles runs every candidate through the agent. Results preserve the
// input order regardless of batch scheduling. When target is non-nil, each
// changed file is committed on the target branch; a parse or transport
// failure marks the whole batch failed and commits nothing from it.
func (p *Processor) ProcessFiles(ctx context.Context, databaseName string, candidates []Candidate, target *CommitTarget, log *worklog.Log) []rules.FileProcessingResult {
	results := make([]rules.FileProcessingResult, len(candidates))

	// Group by source type, remembering original positions.
	groups := make(map[classify.SourceType][]int)
	for i, c := range candidates {
		groups[c.Classification.SourceType] = append(groups[c.Classification.SourceType], i)
	}

	order := append(classify.All(), classify.Unknown)
	for _, sourceType := range order {
		indices := groups[sourceType]
		if len(indices) == 0 {
			continue
		}
		if log != nil {
			log.Info(fmt.Sprintf("Agentic refactoring: %d %s files queued", len(indices), sourceType))
		}
		p.processGroup(ctx, databaseName, sourceType, candidates, indices, results, target, log)
	}
	return results
}

// processGroup batches one source-type group and runs batches with bounded
// parallelism. Each batch writes only its own slots in results.
func (p *Processor) processGroup(
	ctx context.Context,
	databaseName string,
	sourceType classify.SourceType,
	candidates []Candidate,
	indices []int,
	results []rules.FileProcessingResult,
	target *CommitTarget,
	log *worklog.Log,
) {
	groupRules := p.rulesEngine.RulesFor(sourceType, nil)

	var batches [][]int
	for start := 0; start < len(indices); start += p.batchSize {
		end := min(start+p.batchSize, len(indices))
		batches = append(batches, indices[start:end])
	}

	var mu sync.Mutex // serializes worklog table appends per batch
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchConcurrency)

	for batchNum, batch := range batches {
		g.Go(func() error {
			if log != nil {
				rows := make([][]string, 0, len(batch))
				for _, idx := range batch {
					rows = append(rows, []string{candidates[idx].Path, string(sourceType)})
				}
				mu.Lock()
				log.AppendTable([]string{"File Path", "Source Type"}, rows,
					fmt.Sprintf("Batch %d/%d for agent processing (%s)", batchNum+1, len(batches), sourceType), nil)
				mu.Unlock()
			}

			p.processBatch(gctx, databaseName, sourceType, candidates, batch, groupRules, results, target)
			return nil
		})
	}
	_ = g.Wait()
}

// processBatch drives one LLM call and fills the batch's result slots.
func (p *Processor) processBatch(
	ctx context.Context,
	databaseName string,
	sourceType classify.SourceType,
	candidates []Candidate,
	batch []int,
	groupRules []rules.Rule,
	results []rules.FileProcessingResult,
	target *CommitTarget,
) {
	prompt := buildBatchPrompt(databaseName, sourceType, candidates, batch, groupRules)

	raw, err := p.completer.CompleteJSON(ctx, agentSystemPrompt, prompt)
	if err != nil {
		p.failBatch(candidates, batch, results, sourceType, fmt.Sprintf("agent invocation failed: %v", err))
		return
	}

	var response batchResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		p.failBatch(candidates, batch, results, sourceType, fmt.Sprintf("agent returned malformed JSON: %v", err))
		return
	}

	for _, idx := range batch {
		candidate := candidates[idx]
		result := rules.FileProcessingResult{
			FilePath:   candidate.Path,
			SourceType: sourceType,
			Success:    true,
		}

		rewrite, ok := response[candidate.Path]
		if ok && rewrite.ModifiedContent != nil && *rewrite.ModifiedContent != candidate.Content {
			result.TotalChanges = lineDelta(candidate.Content, *rewrite.ModifiedContent)
			result.ModifiedContent = *rewrite.ModifiedContent

			if target != nil {
				message := rules.CommitMessage(sourceType, databaseName, candidate.Path, result.TotalChanges)
				if err := target.Committer.CreateOrUpdateFile(ctx, target.Owner, target.Repo,
					candidate.Path, result.ModifiedContent, message, target.Branch); err != nil {
					result.Success = false
					result.Error = fmt.Sprintf("commit failed: %v", err)
				}
			}
		}
		results[idx] = result
	}
}

// failBatch marks every file of a batch failed. No partial edits from a
// malformed batch are ever committed.
func (p *Processor) failBatch(candidates []Candidate, batch []int, results []rules.FileProcessingResult, sourceType classify.SourceType, message string) {
	p.logger.Warn("Agent batch failed", "source_type", sourceType, "files", len(batch), "error", message)
	for _, idx := range batch {
		results[idx] = rules.FileProcessingResult{
			FilePath:   candidates[idx].Path,
			SourceType: sourceType,
			Success:    false,
			Error:      message,
		}
	}
}

// buildBatchPrompt assembles the agent prompt: the objective, the
// deterministic rules as background, and each file delimited.
func buildBatchPrompt(databaseName string, sourceType classify.SourceType, candidates []Candidate, batch []int, groupRules []rules.Rule) string {
	rulesJSON, _ := json.MarshalIndent(groupRules, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are decommissioning a database named '%s'.\n", databaseName)
	fmt.Fprintf(&b, "You will be given a batch of files of type '%s' and the deterministic rules that normally apply.\n", sourceType)
	b.WriteString("Analyze each file and rewrite it so no code path depends on the database. Prefer commenting out over deletion where the surrounding code must keep working.\n\n")
	fmt.Fprintf(&b, "Rules (background context):\n%s\n\n", rulesJSON)
	b.WriteString("Files to process:\n")

	for _, idx := range batch {
		fmt.Fprintf(&b, "---\nFile path: %s\n\nFile content:\n```\n%s\n```\n", candidates[idx].Path, candidates[idx].Content)
	}

	b.WriteString(`---
Return a JSON object with one key per file path. Each value is an object with the new file content under "modified_content". Omit the key for files that need no changes.
Example:
{
  "path/to/file1.py": {"modified_content": "... new content ..."},
  "path/to/file2.sh": {"modified_content": "... new content ..."}
}
`)
	return b.String()
}

// lineDelta counts lines that differ between two texts (position-wise, plus
// any length difference). Always at least 1 for unequal inputs.
func lineDelta(before, after string) int {
	if before == after {
		return 0
	}
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	shorter := min(len(beforeLines), len(afterLines))
	delta := len(beforeLines) + len(afterLines) - 2*shorter
	for i := 0; i < shorter; i++ {
		if beforeLines[i] != afterLines[i] {
			delta++
		}
	}
	if delta == 0 {
		delta = 1
	}
	return delta
}
