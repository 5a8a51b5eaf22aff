package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoWorkflows indicates that no workflow files were found during discovery.
var ErrNoWorkflows = errors.New("no workflows discovered")

var workflowGlobs = []string{
	filepath.Join(".github", "workflows", "*.yml"),
	filepath.Join(".github", "workflows", "*.yaml"),
}

// Workflows returns workflow file paths relative to root. Explicit paths are
// validated and returned in the order given; otherwise the standard workflow
// directory is globbed and results are sorted lexicographically.
func Workflows(root string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return resolveExplicit(root, explicit)
	}

	seen := make(map[string]struct{})
	for _, glob := range workflowGlobs {
		pattern := filepath.Join(root, glob)
		found, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, match := range found {
			seen[relOrClean(root, match)] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, ErrNoWorkflows
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func resolveExplicit(root string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})
	resolved := make([]string, 0, len(explicit))
	for _, input := range explicit {
		full := input
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, input)
		}
		info, err := os.Stat(full)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("workflow %q not found", input)
			}
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("workflow %q is a directory", input)
		}
		rel := relOrClean(root, full)
		if _, ok := seen[rel]; ok {
			continue
		}
		seen[rel] = struct{}{}
		resolved = append(resolved, rel)
	}
	if len(resolved) == 0 {
		return nil, ErrNoWorkflows
	}
	return resolved, nil
}

// relOrClean prefers a path relative to root, falling back to the cleaned
// absolute path when the file lives outside the root.
func relOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return rel
}
