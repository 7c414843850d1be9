package volume

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"asset-catalog/internal/catalog"
)

// PathTraversalError reports a path that escapes its volume's mount root.
// Fatal to the one file involved, never to the scan.
type PathTraversalError struct {
	Path      string
	MountPath string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("path %q escapes volume root %q", e.Path, e.MountPath)
}

// Resolve computes a file's path relative to its volume's declared mount
// root. Relative paths are never computed against an ad hoc scan root, so
// re-scanning a subfolder yields the same relative_path values as scanning
// the whole volume. Paths resolving outside the mount root are rejected.
func Resolve(v *catalog.Volume, absPath string) (string, error) {
	root := path.Clean(toSlash(v.MountPath))
	p := path.Clean(toSlash(absPath))

	if p == root {
		return "", &PathTraversalError{Path: absPath, MountPath: v.MountPath}
	}
	prefix := root
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(p, prefix) {
		return "", &PathTraversalError{Path: absPath, MountPath: v.MountPath}
	}

	rel := strings.TrimPrefix(p, prefix)
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return "", &PathTraversalError{Path: absPath, MountPath: v.MountPath}
	}
	return rel, nil
}

// Absolute joins a catalog-relative path back onto the volume mount root,
// rejecting anything that would escape it.
func Absolute(v *catalog.Volume, relativePath string) (string, error) {
	rel := path.Clean(toSlash(relativePath))
	if rel == "." || rel == "" || path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", &PathTraversalError{Path: relativePath, MountPath: v.MountPath}
	}
	return path.Join(toSlash(v.MountPath), rel), nil
}

// FolderPath derives the parent directory of a relative path, "" at the
// volume root. Always recomputed whenever relative_path changes so it can
// never go stale.
func FolderPath(relativePath string) string {
	dir := path.Dir(toSlash(relativePath))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func toSlash(p string) string {
	return filepath.ToSlash(p)
}
