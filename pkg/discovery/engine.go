package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/graphmcp/decomm/pkg/classify"
	"github.com/graphmcp/decomm/pkg/mcp"
)

// Confidence assigned per search family. Literal hits take the classifier's
// confidence when it is higher.
const (
	literalConfidence  = 0.8
	semanticConfidence = 0.7
)

// packIncludePatterns bounds the pack to source families the classifier
// understands.
var packIncludePatterns = []string{
	"**/*.{py,js,ts,yaml,yml,json,sql,md,txt,ini,conf,env,sh,tf,tfvars,hcl}",
	"**/Dockerfile",
	"**/docker-compose*",
}

var packExcludePatterns = []string{"node_modules/**", "*.log", "*.tmp"}

// typePathFilters key grep results to a candidate source type by path shape.
var typePathFilters = []struct {
	sourceType classify.SourceType
	pathRe     *regexp.Regexp
}{
	{classify.Infrastructure, regexp.MustCompile(`(?i)(\.tf|\.tfvars|\.hcl)$|Dockerfile$|docker-compose`)},
	{classify.Config, regexp.MustCompile(`(?i)(\.ya?ml|\.json|\.toml|\.ini|\.conf|\.properties|\.env)$`)},
	{classify.Sql, regexp.MustCompile(`(?i)(\.sql|\.ddl|\.dml)$`)},
	{classify.Python, regexp.MustCompile(`(?i)\.py$`)},
	{classify.Shell, regexp.MustCompile(`(?i)(\.sh|\.bash|\.zsh)$`)},
	{classify.Documentation, regexp.MustCompile(`(?i)(\.md|\.rst|\.adoc)$`)},
}

// Packer is the subset of the pack/grep capability the engine consumes.
// *mcp.RepoPacker is the production implementation.
type Packer interface {
	PackRemoteRepository(ctx context.Context, repoURL string, includePatterns, excludePatterns []string) (*mcp.PackResult, error)
	ReadPacked(ctx context.Context, outputID string) (string, error)
	GrepPacked(ctx context.Context, outputID, pattern string, contextLines int, ignoreCase bool) (*mcp.GrepResult, error)
}

var _ Packer = (*mcp.RepoPacker)(nil)

// Engine runs pattern discovery over packed repositories.
type Engine struct {
	classifier *classify.Classifier
	packer     Packer
	logger     *slog.Logger
}

// NewEngine creates a discovery engine.
func NewEngine(classifier *classify.Classifier, packer Packer) *Engine {
	return &Engine{
		classifier: classifier,
		packer:     packer,
		logger:     slog.Default().With("component", "discovery"),
	}
}

// Discover locates references to databaseName in the repository. Packing
// failures are returned as errors; an empty pack yields an empty result.
func (e *Engine) Discover(ctx context.Context, databaseName string, repo RepoRef) (*Result, error) {
	log := e.logger.With("database", databaseName, "repo", repo.String())
	log.Info("Starting pattern discovery")

	pack, err := e.packer.PackRemoteRepository(ctx, repo.URL, packIncludePatterns, packExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("pack repository %s: %w", repo.String(), err)
	}

	content, err := e.packer.ReadPacked(ctx, pack.OutputID)
	if err != nil {
		return nil, fmt.Errorf("read packed repository %s: %w", repo.String(), err)
	}

	files := parsePackedContent(content)
	result := &Result{
		DatabaseName:      databaseName,
		Repo:              repo,
		TotalFilesScanned: len(files),
		FilesByType:       make(map[classify.SourceType][]FileMatch),
		OutputID:          pack.OutputID,
	}
	if len(files) == 0 {
		log.Info("Packed repository is empty")
		return result, nil
	}

	merged := make(map[string]*FileMatch)
	escaped := regexp.QuoteMeta(databaseName)

	// Search 1: literal references, including quoted and delimited variants.
	literalPatterns := []string{
		escaped,
		`"` + escaped + `"`,
		`'` + escaped + `'`,
		`:` + escaped,
		`=` + escaped,
	}
	if err := e.grepAndMerge(ctx, pack.OutputID, literalPatterns[0], literalPatterns, files, merged, literalConfidence, nil); err != nil {
		return nil, err
	}

	// Search 2: same token keyed to candidate types by path shape.
	for _, filter := range typePathFilters {
		if err := e.grepAndMerge(ctx, pack.OutputID, escaped, []string{escaped}, files, merged, literalConfidence, filter.pathRe); err != nil {
			return nil, err
		}
	}

	// Search 3: semantic per-type templates.
	for _, sourceType := range classify.All() {
		for _, pattern := range classify.SearchPatterns(sourceType, escaped) {
			if pattern == escaped {
				continue // covered by the literal search
			}
			if err := e.grepAndMerge(ctx, pack.OutputID, pattern, []string{pattern}, files, merged, semanticConfidence, nil); err != nil {
				return nil, err
			}
		}
	}

	// Qualification: at least one non-comment line must carry the token.
	tokenRe := regexp.MustCompile(`(?i)` + escaped)
	paths := make([]string, 0, len(merged))
	for path := range merged {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var scores []float64
	for _, path := range paths {
		match := merged[path]
		if !hasNonCommentReference(match.Content, tokenRe) {
			log.Debug("Rejecting comment-only match", "path", path)
			continue
		}
		result.Files = append(result.Files, *match)
		result.FilesByType[match.SourceType] = append(result.FilesByType[match.SourceType], *match)
		scores = append(scores, match.Confidence)
	}
	result.ConfidenceDistribution = distribution(scores)

	log.Info("Pattern discovery complete",
		"files_scanned", result.TotalFilesScanned,
		"files_matched", len(result.Files),
		"average_confidence", result.ConfidenceDistribution.Average)
	return result, nil
}

// grepAndMerge runs one grep and folds its hits into merged. pathFilter, when
// set, drops hits whose path does not match. patterns records which pattern
// strings are attributed to each hit line.
func (e *Engine) grepAndMerge(
	ctx context.Context,
	outputID, grepPattern string,
	patterns []string,
	files map[string]string,
	merged map[string]*FileMatch,
	baseConfidence float64,
	pathFilter *regexp.Regexp,
) error {
	grep, err := e.packer.GrepPacked(ctx, outputID, grepPattern, 0, true)
	if err != nil {
		return fmt.Errorf("grep packed archive: %w", err)
	}

	for _, hit := range grep.Matches {
		if pathFilter != nil && !pathFilter.MatchString(hit.File) {
			continue
		}

		match, ok := merged[hit.File]
		if !ok {
			fileContent := files[hit.File]
			cls := e.classifier.ClassifyFile(hit.File, fileContent)
			match = &FileMatch{
				Path:           hit.File,
				SourceType:     cls.SourceType,
				Content:        fileContent,
				Classification: cls,
			}
			merged[hit.File] = match
		}

		confidence := baseConfidence
		if baseConfidence >= literalConfidence && match.Classification.Confidence > confidence {
			confidence = match.Classification.Confidence
		}
		if confidence > match.Confidence {
			match.Confidence = confidence
		}

		for _, pattern := range attributePatterns(hit.Context, patterns) {
			if hasPatternMatch(match.PatternMatches, pattern, hit.LineNumber) {
				continue
			}
			match.PatternMatches = append(match.PatternMatches, PatternMatch{
				Pattern:     pattern,
				LineNumber:  hit.LineNumber,
				LineContent: strings.TrimSpace(hit.Context),
			})
			match.MatchCount++
		}
	}
	return nil
}

// attributePatterns returns the subset of patterns that actually match the
// hit line, falling back to the first pattern when the server's context is
// unavailable.
func attributePatterns(line string, patterns []string) []string {
	if line == "" {
		return patterns[:1]
	}
	var out []string
	for _, pattern := range patterns {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			continue
		}
		if re.MatchString(line) {
			out = append(out, pattern)
		}
	}
	if len(out) == 0 {
		out = patterns[:1]
	}
	return out
}

func hasPatternMatch(matches []PatternMatch, pattern string, line int) bool {
	for _, m := range matches {
		if m.Pattern == pattern && m.LineNumber == line {
			return true
		}
	}
	return false
}

// commentPrefixes covers the language families discovery scans.
var commentPrefixes = []string{"#", "//", "/*", "*", "--"}

// hasNonCommentReference reports whether any non-comment line of content
// carries the database token. Files whose content was not recovered from the
// pack qualify by default: the grep hit is the only evidence available.
func hasNonCommentReference(content string, tokenRe *regexp.Regexp) bool {
	if content == "" {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		if !tokenRe.MatchString(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		comment := false
		for _, prefix := range commentPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				comment = true
				break
			}
		}
		if !comment {
			return true
		}
	}
	return false
}

// packedFileRe extracts individual files from a packed archive.
var packedFileRe = regexp.MustCompile(`(?s)<file path="([^"]+)">\n(.*?)\n</file>`)

// parsePackedContent splits a packed archive into per-file contents.
func parsePackedContent(content string) map[string]string {
	files := make(map[string]string)
	for _, m := range packedFileRe.FindAllStringSubmatch(content, -1) {
		files[m[1]] = m[2]
	}
	return files
}

// distribution buckets confidences: high ≥0.8, medium [0.5, 0.8), low <0.5.
func distribution(scores []float64) Distribution {
	var d Distribution
	if len(scores) == 0 {
		return d
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
		switch {
		case s >= 0.8:
			d.High++
		case s >= 0.5:
			d.Medium++
		default:
			d.Low++
		}
	}
	d.Average = sum / float64(len(scores))
	return d
}
