package tool

import "path/filepath"

// NormalizePath resolves a possibly-relative path against workingDir
// and collapses "."/".." and duplicate separators (§4.2). Confined
// tools call this on every path argument before returning it from
// AffectedPaths, so the Dependency Scheduler always compares canonical
// paths.
func NormalizePath(workingDir, path string) string {
	if path == "" {
		return path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workingDir, path)
	}
	return filepath.Clean(path)
}

// NormalizePaths maps NormalizePath over a slice, preserving nil vs
// empty-slice distinction: a nil input means "no paths" (use the
// unconfined/non-filesystem nil sentinel from AffectedPaths instead).
func NormalizePaths(workingDir string, paths []string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = NormalizePath(workingDir, p)
	}
	return out
}
