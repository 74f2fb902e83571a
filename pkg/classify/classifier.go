package classify

import (
	"fmt"
	"path"
	"strings"
)

// Signal weights. Directory hits stack; extension and basename are single
// hits per type.
const (
	extensionWeight = 0.4
	fileNameWeight  = 0.3
	directoryWeight = 0.2
	contentWeight   = 0.1

	// minConfidence is the score below which a file is Unknown.
	minConfidence = 0.1
)

// Classifier scores files against per-type signal tables. Safe for
// concurrent use; all state is immutable after construction.
type Classifier struct {
	signals    map[SourceType]typeSignals
	frameworks []frameworkSignal
}

// NewClassifier creates a classifier with the built-in signal tables.
func NewClassifier() *Classifier {
	return &Classifier{
		signals:    defaultSignals(),
		frameworks: defaultFrameworkSignals(),
	}
}

// ClassifyFile classifies a single file. Content may be empty, in which case
// only path signals contribute.
func (c *Classifier) ClassifyFile(filePath, content string) Result {
	scores := make(map[SourceType]float64, len(priorityOrder))
	var matched []string

	ext := strings.ToLower(path.Ext(filePath))
	base := path.Base(filePath)
	lowerPath := strings.ToLower(filePath)

	for _, t := range priorityOrder {
		sig := c.signals[t]
		if sig.extensions[ext] {
			scores[t] += extensionWeight
			matched = append(matched, "extension:"+ext)
		}
		if sig.fileNames[base] {
			scores[t] += fileNameWeight
			matched = append(matched, "filename:"+base)
		}
		for _, frag := range sig.dirFragments {
			if strings.Contains(lowerPath, frag) {
				scores[t] += directoryWeight
				matched = append(matched, "directory:"+frag)
			}
		}
	}

	var frameworks []string
	if content != "" {
		for _, t := range priorityOrder {
			for _, re := range c.signals[t].content {
				if re.MatchString(content) {
					scores[t] += contentWeight
					matched = append(matched, "content:"+re.String())
				}
			}
		}
		frameworks = c.detectFrameworks(content)
	}

	// Highest score wins; priority order breaks ties.
	best := Unknown
	bestScore := 0.0
	for _, t := range priorityOrder {
		if scores[t] > bestScore {
			best = t
			bestScore = scores[t]
		}
	}

	confidence := bestScore
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < minConfidence {
		return Result{
			SourceType:      Unknown,
			Confidence:      0,
			MatchedPatterns: matched,
		}
	}

	return Result{
		SourceType:         best,
		Confidence:         confidence,
		MatchedPatterns:    matched,
		DetectedFrameworks: frameworks,
		RuleFiles:          ruleFiles(best),
	}
}

// detectFrameworks returns the framework tags whose signals appear in
// content, in detection order.
func (c *Classifier) detectFrameworks(content string) []string {
	var tags []string
	for _, fw := range c.frameworks {
		for _, re := range fw.content {
			if re.MatchString(content) {
				tags = append(tags, fw.name)
				break
			}
		}
	}
	return tags
}

// SearchPatterns returns raw regex pattern strings tailored to a source type
// for locating references to databaseName. Patterns are templates over the
// raw name; callers escape the name before compiling.
func SearchPatterns(sourceType SourceType, databaseName string) []string {
	base := []string{
		databaseName,
		strings.ToUpper(databaseName),
		strings.ToLower(databaseName),
		strings.ReplaceAll(databaseName, "_", "-"),
		strings.ReplaceAll(databaseName, "-", "_"),
	}

	var typed []string
	switch sourceType {
	case Infrastructure:
		typed = []string{
			fmt.Sprintf(`name.*%s`, databaseName),
			fmt.Sprintf(`database.*%s`, databaseName),
			fmt.Sprintf(`%s.*database`, databaseName),
			fmt.Sprintf(`resource.*%s`, databaseName),
		}
	case Config:
		typed = []string{
			fmt.Sprintf(`database.*%s`, databaseName),
			fmt.Sprintf(`db.*%s`, databaseName),
			fmt.Sprintf(`%s_DATABASE_URL`, databaseName),
			fmt.Sprintf(`%s.*connection`, databaseName),
		}
	case Sql:
		typed = []string{
			fmt.Sprintf(`CREATE\s+DATABASE\s+%s`, databaseName),
			fmt.Sprintf(`CREATE\s+SCHEMA\s+%s`, databaseName),
			fmt.Sprintf(`USE\s+%s`, databaseName),
			fmt.Sprintf(`DATABASE.*%s`, databaseName),
		}
	case Python:
		typed = []string{
			fmt.Sprintf(`DATABASES\s*=.*%s`, databaseName),
			fmt.Sprintf(`database.*%s`, databaseName),
			fmt.Sprintf(`db.*%s`, databaseName),
			fmt.Sprintf(`class.*%s`, databaseName),
		}
	case Shell:
		typed = []string{
			fmt.Sprintf(`%s_[A-Z_]+=`, databaseName),
			fmt.Sprintf(`DB_NAME=.?%s`, databaseName),
			fmt.Sprintf(`psql.*%s`, databaseName),
			fmt.Sprintf(`mysql.*%s`, databaseName),
		}
	case Documentation:
		typed = []string{
			fmt.Sprintf("`%s`", databaseName),
			fmt.Sprintf(`#.*%s`, databaseName),
		}
	}

	return append(typed, base...)
}
