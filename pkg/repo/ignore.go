package repo

import (
	"path/filepath"
	"strings"
)

// ignoreMatcher checks a normalized path against ingestion.ignore_globs.
// Adapted from the teacher's gitignore-style pattern engine
// (pkg/repo/ignore.go's IgnoreChecker), but simplified for a flat list
// of glob patterns read from configuration rather than a .gotignore
// file: no negation ordering and no directory-prefix indexing, just a
// literal/glob match against the full path or its basename, which is
// all a configured glob list needs.
type ignoreMatcher struct {
	globs []string
}

func newIgnoreMatcher(globs []string) *ignoreMatcher {
	return &ignoreMatcher{globs: globs}
}

// matches reports whether path, already repository-relative and
// slash-separated, is covered by any configured glob. A glob
// containing no slash matches against the path's basename only,
// mirroring .gitignore's own rule; a trailing slash marks a
// directory-only pattern that also matches anything underneath it.
func (m *ignoreMatcher) matches(path string) bool {
	base := filepath.Base(path)
	for _, g := range m.globs {
		dirOnly := strings.HasSuffix(g, "/")
		g = strings.TrimSuffix(g, "/")
		hasSlash := strings.Contains(g, "/")

		target := base
		if hasSlash || dirOnly {
			target = path
		}
		if ok, _ := filepath.Match(g, target); ok {
			return true
		}
		if dirOnly && (path == g || strings.HasPrefix(path, g+"/")) {
			return true
		}
	}
	return false
}
