// Package utils holds the path filtering used when walking upload directories.
package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// A pattern is tried both as a glob on the base name (case-insensitive) and,
// when it compiles, as a regular expression on the full path.
type pattern struct {
	glob string
	re   *regexp.Regexp
}

type PatternMatcher struct {
	include []pattern
	exclude []pattern
}

func NewPatternMatcher(includePatterns, excludePatterns []string) *PatternMatcher {
	return &PatternMatcher{
		include: compilePatterns(includePatterns),
		exclude: compilePatterns(excludePatterns),
	}
}

// ShouldInclude reports whether path passes the include list (when one is
// set) and matches nothing on the exclude list.
func (m *PatternMatcher) ShouldInclude(path string) bool {
	if m == nil {
		return true
	}
	if len(m.include) > 0 && !matchAny(path, m.include) {
		return false
	}
	return !matchAny(path, m.exclude)
}

func matchAny(path string, patterns []pattern) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, p := range patterns {
		if matched, _ := filepath.Match(p.glob, base); matched {
			return true
		}
		if p.re != nil && p.re.MatchString(path) {
			return true
		}
	}
	return false
}

func compilePatterns(raw []string) []pattern {
	patterns := make([]pattern, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p := pattern{glob: strings.ToLower(s)}
		if re, err := regexp.Compile(s); err == nil {
			p.re = re
		}
		patterns = append(patterns, p)
	}
	return patterns
}
