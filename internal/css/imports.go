// Package css collects stylesheet import chains and drives the external
// utility-CSS compiler.
package css

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/sitebuild/internal/graph"
)

var (
	importPattern = regexp.MustCompile(`@import\s+(?:url\()?['"]?([^'")]+)['"]?\)?\s*;`)
	remotePattern = regexp.MustCompile(`(?i)^(?:https?:)?//`)
)

// FrameworkPrefix marks imports served by the CSS framework itself.
const FrameworkPrefix = "tailwindcss/"

// CollectImports returns root plus every local stylesheet it imports,
// directly or transitively. seen memoizes visited paths across calls and may
// be nil. root is always in the result, even if it cannot be read; imports
// that do not exist on disk are skipped.
func CollectImports(root string, seen graph.Deps) graph.Deps {
	if seen == nil {
		seen = graph.NewDeps()
	}
	if seen.Has(root) {
		return seen
	}
	seen.Add(root)

	content, err := os.ReadFile(root)
	if err != nil {
		return seen
	}

	for _, target := range ParseImports(string(content)) {
		resolved := filepath.Join(filepath.Dir(root), filepath.FromSlash(target))
		if _, err := os.Stat(resolved); err != nil {
			continue
		}
		CollectImports(resolved, seen)
	}

	return seen
}

// ParseImports returns the local import targets of a stylesheet in source
// order. Remote and framework-internal imports are dropped.
func ParseImports(content string) []string {
	var targets []string
	for _, m := range importPattern.FindAllStringSubmatch(content, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" || remotePattern.MatchString(target) || strings.HasPrefix(target, FrameworkPrefix) {
			continue
		}
		targets = append(targets, target)
	}
	return targets
}
