// Package security validates file paths that originate in case files
// rather than on the command line.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckWithinDir returns an error unless path, after cleaning and
// resolving symlinks, lies inside dir. Symlinks are resolved for the
// longest existing prefix of both arguments, so a not-yet-created file
// under a symlinked parent is still checked against the link target.
func CheckWithinDir(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", path, err)
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("resolve directory %s: %w", dir, err)
	}

	rel, err := filepath.Rel(resolveExisting(absDir), resolveExisting(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes %s", path, dir)
	}
	return nil
}

// resolveExisting resolves symlinks over the longest existing prefix of
// an absolute path, then rejoins the components that do not exist yet.
func resolveExisting(path string) string {
	remainder := ""
	for p := path; ; {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, remainder)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		remainder = filepath.Join(filepath.Base(p), remainder)
		p = parent
	}
}
