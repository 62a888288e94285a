//go:generate mockgen -source=$GOFILE -destination=${GOFILE}_mock.go -package=$GOPACKAGE

// Package icons runs the icon-subsetting step after HTML output exists.
package icons

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conneroisu/sitebuild/internal/logging"
	"github.com/conneroisu/sitebuild/internal/validation"
)

// Builder produces the icon assets for the current output tree. Nothing it
// writes feeds back into the dependency graph.
type Builder interface {
	Build(ctx context.Context) error
}

// NopBuilder disables the icon step.
type NopBuilder struct{}

// Build implements Builder.
func (NopBuilder) Build(context.Context) error { return nil }

// CommandBuilder delegates the icon step to an external program.
type CommandBuilder struct {
	argv    []string
	dir     string
	timeout time.Duration
	logger  logging.Logger
}

// NewCommandBuilder validates argv and returns a builder that runs it in dir.
func NewCommandBuilder(argv []string, dir string, logger logging.Logger) (*CommandBuilder, error) {
	if err := validation.ValidateCommand(argv, nil); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &CommandBuilder{
		argv:    argv,
		dir:     dir,
		timeout: 2 * time.Minute,
		logger:  logger.WithComponent("icons"),
	}, nil
}

// Build runs the command and waits for it.
func (b *CommandBuilder) Build(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.argv[0], b.argv[1:]...)
	cmd.Dir = b.dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w\nOutput: %s", strings.Join(b.argv, " "), err, strings.TrimSpace(string(output)))
	}

	b.logger.Debug(ctx, "Icon command finished", "command", strings.Join(b.argv, " "))
	return nil
}
