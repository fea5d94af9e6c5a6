package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"uploadscan/logger"
	"uploadscan/utils"
)

// DiscoverOptions controls how Discover turns start paths into uploads.
type DiscoverOptions struct {
	Matcher *utils.PatternMatcher
	// MimeType, when set, is declared for every upload instead of sniffing.
	MimeType string
}

// Discover walks each start path and returns one Upload per regular file the
// matcher accepts, sorted by path. Unreadable entries are logged and skipped.
func Discover(ctx context.Context, startPaths []string, opts DiscoverOptions) ([]Upload, error) {
	var uploads []Upload
	seen := make(map[string]bool)
	guard := utils.NewPathGuard(startPaths)
	for _, start := range startPaths {
		err := walk(ctx, start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warnf("Failed to access %s: %v", path, err)
				return nil
			}
			if d == nil || !includeEntry(path, d, guard) {
				return nil
			}
			if opts.Matcher != nil && !opts.Matcher.ShouldInclude(path) {
				return nil
			}
			if seen[path] {
				return nil
			}
			seen[path] = true
			mimeType := opts.MimeType
			if mimeType == "" {
				mimeType = DetectMimeType(path)
			}
			uploads = append(uploads, Upload{
				Path:     path,
				MimeType: mimeType,
				FileName: filepath.Base(path),
			})
			return nil
		})
		if err != nil {
			return uploads, err
		}
	}
	sort.Slice(uploads, func(i, j int) bool { return uploads[i].Path < uploads[j].Path })
	return uploads, nil
}

// includeEntry accepts regular files, and symlinks to regular files that
// resolve inside one of the start paths.
func includeEntry(path string, d fs.DirEntry, guard *utils.PathGuard) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if !guard.Contains(path) {
		logger.Warnf("Skipping symlink outside target paths: %s", path)
		return false
	}
	return true
}

// walk is a depth-first directory walk that checks ctx between entries and
// does not follow symlinked directories.
func walk(ctx context.Context, startPath string, fn fs.WalkDirFunc) error {
	info, err := os.Stat(startPath)
	if err != nil {
		return fn(startPath, nil, err)
	}
	type item struct {
		path  string
		entry fs.DirEntry
	}
	stack := []item{{path: startPath, entry: fs.FileInfoToDirEntry(info)}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := fn(current.path, current.entry, nil); err != nil {
			if err == fs.SkipDir {
				continue
			}
			return err
		}
		if !current.entry.IsDir() {
			continue
		}
		entries, err := os.ReadDir(current.path)
		if err != nil {
			if ferr := fn(current.path, current.entry, err); ferr != nil && ferr != fs.SkipDir {
				return ferr
			}
			continue
		}
		for _, child := range entries {
			stack = append(stack, item{
				path:  filepath.Join(current.path, child.Name()),
				entry: child,
			})
		}
	}
	return nil
}
