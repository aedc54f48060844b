package dev

import (
	"path/filepath"

	"github.com/vango-dev/vpack/internal/config"
)

// CollectWatchPaths returns a normalized list of watch paths for the project:
// the configured dev.watch entries plus the directory of every entry point.
func CollectWatchPaths(cfg *config.Config) []string {
	projectDir := cfg.Dir()
	paths := cfg.WatchPaths()

	for _, e := range cfg.Entry {
		paths = append(paths, filepath.Dir(resolvePath(projectDir, filepath.FromSlash(e.Path))))
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			continue
		}
		if covered(clean, unique) {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}

	return unique
}

// covered reports whether path lies inside one of dirs.
func covered(path string, dirs []string) bool {
	for _, dir := range dirs {
		if isWithinDir(path, dir) {
			return true
		}
	}
	return false
}

func resolvePath(projectDir, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && rel[2] == filepath.Separator
}
