package utils

import (
	"path/filepath"
	"strings"
)

// PathGuard answers whether a path, after resolving symlinks, stays inside
// one of a fixed set of roots.
type PathGuard struct {
	roots []string
}

func NewPathGuard(roots []string) *PathGuard {
	g := &PathGuard{}
	for _, root := range roots {
		if abs, ok := resolve(root); ok {
			g.roots = append(g.roots, abs)
		}
	}
	return g
}

func (g *PathGuard) Contains(path string) bool {
	abs, ok := resolve(path)
	if !ok {
		return false
	}
	for _, root := range g.roots {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// IsPathWithin is a one-off PathGuard check.
func IsPathWithin(path string, roots []string) bool {
	return NewPathGuard(roots).Contains(path)
}

func resolve(path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	return abs, true
}
