package css

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/sitebuild/internal/logging"
	"github.com/conneroisu/sitebuild/internal/validation"
)

// TailwindOptions configures the external utility-CSS compiler.
type TailwindOptions struct {
	// Command is the program and leading arguments, e.g. ["npx", "tailwindcss"].
	Command []string
	// ConfigPath is passed as -c when set.
	ConfigPath string
	// ContentEnv names the environment variable that carries the content
	// file path to the framework configuration.
	ContentEnv string
	Minify     bool
	Timeout    time.Duration
	// Dir is the working directory of the process.
	Dir string
}

// TailwindCompiler runs the Tailwind CLI once per stylesheet.
type TailwindCompiler struct {
	opts   TailwindOptions
	logger logging.Logger
}

var allowedCompilers = map[string]bool{
	"npx":         true,
	"tailwindcss": true,
	"bunx":        true,
	"pnpm":        true,
}

// NewTailwindCompiler validates opts and returns a compiler.
func NewTailwindCompiler(opts TailwindOptions, logger logging.Logger) (*TailwindCompiler, error) {
	if err := validation.ValidateCommand(opts.Command, nil); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}
	if opts.ConfigPath != "" {
		if err := validation.ValidateArgument(opts.ConfigPath); err != nil {
			return nil, fmt.Errorf("invalid config path argument: %w", err)
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	if !allowedCompilers[filepath.Base(opts.Command[0])] {
		logger.Warn(context.Background(), nil, "CSS compiler is not a known Tailwind launcher", "command", opts.Command[0])
	}

	return &TailwindCompiler{opts: opts, logger: logger.WithComponent("css")}, nil
}

// Args returns the argument vector used for one compilation.
func (c *TailwindCompiler) Args(input, output string) []string {
	args := append([]string{}, c.opts.Command...)
	if c.opts.ConfigPath != "" {
		args = append(args, "-c", c.opts.ConfigPath)
	}
	args = append(args, "-i", input, "-o", output)
	if c.opts.Minify {
		args = append(args, "--minify")
	}
	return args
}

// Compile runs the CLI synchronously. The content file path is exported in
// the configured environment variable so the framework config scans only
// that page.
func (c *TailwindCompiler) Compile(ctx context.Context, input, output, content string) error {
	for _, p := range []string{input, output, content} {
		if err := validation.ValidateArgument(p); err != nil {
			return fmt.Errorf("invalid path argument %q: %w", p, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	args := c.Args(input, output)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.opts.Dir
	cmd.Env = os.Environ()
	if c.opts.ContentEnv != "" {
		cmd.Env = append(cmd.Env, c.opts.ContentEnv+"="+content)
	}

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("tailwind timed out after %s", c.opts.Timeout)
		}
		return fmt.Errorf("tailwind failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	c.logger.Debug(ctx, "Compiled stylesheet",
		"input", input,
		"output", output,
		"content", content,
		"duration", time.Since(start).String())

	return nil
}
