// Package validation provides the path and command checks shared by the
// build pipeline, the external-process adapters, and the dev server.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

var shellMetacharacters = []string{";", "&", "|", "$", "`", "<", ">", "\n", "\r"}

// ValidateArgument rejects arguments carrying shell metacharacters. Commands
// are executed without a shell, so this only guards against configuration
// values that were meant for one.
func ValidateArgument(arg string) error {
	for _, char := range shellMetacharacters {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}
	if strings.Contains(arg, "\x00") {
		return fmt.Errorf("contains null byte")
	}

	return nil
}

// ValidateCommand validates a command line split into program and arguments.
// When allowed is non-empty the program's base name must be in it.
func ValidateCommand(argv []string, allowed map[string]bool) error {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if len(allowed) > 0 && !allowed[filepath.Base(argv[0])] {
		return fmt.Errorf("command '%s' is not allowed", argv[0])
	}

	for _, arg := range argv {
		if err := ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}

	return nil
}

// WithinRoot reports whether path is root itself or lies below it. Both
// paths are cleaned; neither needs to exist.
func WithinRoot(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidatePath rejects empty paths and paths with shell metacharacters.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	for _, char := range shellMetacharacters {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}
