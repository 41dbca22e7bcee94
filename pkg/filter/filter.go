// Package filter decides which paths under a sync root take part in mirroring.
package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// SourceCodeExtensions is the allow-list applied when source-code-only is set
var SourceCodeExtensions = map[string]bool{
	".py": true, ".js": true, ".html": true, ".css": true, ".scss": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true,
	".go": true, ".rs": true, ".php": true, ".rb": true, ".ts": true,
	".tsx": true, ".jsx": true, ".json": true, ".yml": true, ".yaml": true,
	".md": true, ".sh": true, ".xml": true, ".sql": true,
}

// RuleSet holds compiled exclusion patterns for one target
type RuleSet struct {
	patterns []string
	globs    []glob.Glob

	// SourceCodeOnly restricts files to SourceCodeExtensions
	SourceCodeOnly bool
}

// literals escapes the glob syntax that shell patterns do not have:
// braces and backslashes are plain characters in an exclusion pattern
var literals = strings.NewReplacer(`\`, `\\`, "{", `\{`, "}", `\}`)

// Compile builds a rule set from shell-style exclusion patterns.
// Only '*', '?' and '[...]' are special. Patterns are compiled without
// separators so that '*' also matches '/'. A pattern that is not a valid
// glob is matched literally.
func Compile(patterns []string, sourceCodeOnly bool) (*RuleSet, error) {
	rs := &RuleSet{SourceCodeOnly: sourceCodeOnly}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(literals.Replace(p))
		if err != nil {
			g, err = glob.Compile(glob.QuoteMeta(p))
			if err != nil {
				return nil, fmt.Errorf("failed to compile exclude pattern %q: %w", p, err)
			}
		}
		rs.patterns = append(rs.patterns, p)
		rs.globs = append(rs.globs, g)
	}
	return rs, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(patterns []string, sourceCodeOnly bool) *RuleSet {
	rs, err := Compile(patterns, sourceCodeOnly)
	if err != nil {
		panic(err)
	}
	return rs
}

// Patterns returns the source patterns of the rule set
func (r *RuleSet) Patterns() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.patterns...)
}

// Included reports whether relPath takes part in mirroring.
//
// A path is excluded when its normalized form (directories carry a trailing
// slash) or its base name matches any exclusion pattern. When
// sourceCodeOnlyApplies is set and the rule set is source-code-only, files
// outside the extension allow-list are excluded too. Directories are never
// excluded by the allow-list.
func Included(relPath string, isDir bool, rules *RuleSet, sourceCodeOnlyApplies bool) bool {
	if rules == nil {
		return true
	}

	normalized := Normalize(relPath)
	base := path.Base(normalized)

	candidates := []string{normalized, base}
	if isDir {
		candidates = []string{normalized + "/", base, base + "/"}
	}

	for _, g := range rules.globs {
		for _, c := range candidates {
			if g.Match(c) {
				return false
			}
		}
	}

	if isDir || !sourceCodeOnlyApplies || !rules.SourceCodeOnly {
		return true
	}

	return SourceCodeExtensions[strings.ToLower(path.Ext(base))]
}

// Normalize converts a relative path to slash form without leading "./",
// leading or trailing slashes
func Normalize(relPath string) string {
	p := strings.ReplaceAll(relPath, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
