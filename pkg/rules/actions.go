package rules

import (
	"regexp"
	"strings"
)

// commentMarkers are the line prefixes recognized as existing comments,
// across the language families the rules cover.
var commentMarkers = []string{"#", "//", "/*", "*", "--"}

// isCommentLine reports whether a line is already a comment.
func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, marker := range commentMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// matchesAny reports whether any compiled pattern matches the line.
func matchesAny(line string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// commentOut prepends the comment prefix to each matching non-comment line.
// Already-commented lines are left alone, which makes the action idempotent.
func commentOut(content string, patterns []*regexp.Regexp, prefix string) (string, int) {
	lines := strings.Split(content, "\n")
	changes := 0

	for i, line := range lines {
		if !matchesAny(line, patterns) || isCommentLine(line) {
			continue
		}
		p := prefix
		if p == "" {
			p = inferCommentPrefix(line)
		}
		lines[i] = p + " " + line
		changes++
	}
	return strings.Join(lines, "\n"), changes
}

// deprecationNotice builds the notice line for a matching line. Phrasing
// varies with context so the notice reads sensibly inside test data, tables,
// and scenario definitions; the DEPRECATED token and database name are
// always present.
func deprecationNotice(line, databaseName, prefix string) string {
	if prefix == "" {
		prefix = inferCommentPrefix(line)
	}
	base := prefix + " DEPRECATED: " + databaseName + " database has been decommissioned"

	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "test") || strings.Contains(lower, "example") ||
		strings.Contains(lower, "demo") || strings.Contains(lower, "sample"):
		return base + " - update test/example data"
	case strings.Contains(lower, "scenario") || strings.Contains(lower, "definition"):
		return base + " - remove from scenarios"
	default:
		return base
	}
}

// addDeprecationNotice inserts one notice line immediately before the first
// matching line of each contiguous match region. Matching lines are not
// modified. A notice already present directly above a region suppresses a
// second insertion, which makes the action idempotent.
func addDeprecationNotice(content string, patterns []*regexp.Regexp, databaseName, prefix string) (string, int) {
	lines := strings.Split(content, "\n")
	var out []string
	changes := 0
	inRegion := false

	for i, line := range lines {
		// A notice line never opens a region of its own, no matter how broad
		// the rule's patterns are.
		matched := matchesAny(line, patterns) &&
			!strings.Contains(line, "DEPRECATED: "+databaseName)
		if matched && !inRegion {
			alreadyNoticed := i > 0 && strings.Contains(lines[i-1], "DEPRECATED: "+databaseName)
			if !alreadyNoticed {
				out = append(out, deprecationNotice(line, databaseName, prefix))
				changes++
			}
		}
		inRegion = matched
		out = append(out, line)
	}
	return strings.Join(out, "\n"), changes
}

// removeMatchingLines drops every matching line.
func removeMatchingLines(content string, patterns []*regexp.Regexp) (string, int) {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	changes := 0

	for _, line := range lines {
		if matchesAny(line, patterns) {
			changes++
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n"), changes
}

// inferCommentPrefix picks a comment marker from line shape when the rule
// declares none: `--` for SQL-looking statements, `#` otherwise.
func inferCommentPrefix(line string) string {
	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasSuffix(trimmed, ";"),
		strings.HasPrefix(upper, "CREATE "),
		strings.HasPrefix(upper, "DROP "),
		strings.HasPrefix(upper, "SELECT "),
		strings.HasPrefix(upper, "INSERT "),
		strings.HasPrefix(upper, "UPDATE "),
		strings.HasPrefix(upper, "DELETE "),
		strings.HasPrefix(upper, "USE "):
		return "--"
	default:
		return "#"
	}
}
