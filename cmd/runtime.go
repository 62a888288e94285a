package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitebuild/internal/build"
	"github.com/conneroisu/sitebuild/internal/config"
	"github.com/conneroisu/sitebuild/internal/css"
	"github.com/conneroisu/sitebuild/internal/icons"
	"github.com/conneroisu/sitebuild/internal/logging"
)

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig loads and validates the configuration, then creates the
// logger it describes. Validation warnings are logged.
func loadConfig(ctx context.Context) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range cfg.Warnings {
		logger.Warn(ctx, nil, "Configuration warning", "detail", w)
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}

func newCompiler(cfg *config.Config, logger logging.Logger) (css.Compiler, error) {
	return css.NewTailwindCompiler(css.TailwindOptions{
		Command:    cfg.CSSCommand(),
		ConfigPath: cfg.CSS.Config,
		ContentEnv: cfg.CSS.ContentEnv,
		Minify:     cfg.CSS.Minify,
		Timeout:    cfg.CSS.Timeout,
		Dir:        cfg.ProjectDir,
	}, logger)
}

// newIconBuilder returns the icon step for outputDir.
func newIconBuilder(cfg *config.Config, outputDir string, logger logging.Logger) (icons.Builder, error) {
	switch cfg.Icons.Mode {
	case config.IconsOff:
		return icons.NopBuilder{}, nil
	case config.IconsCommand:
		return icons.NewCommandBuilder(cfg.IconCommand(), cfg.ProjectDir, logger)
	default:
		return icons.NewSubsetter(icons.Options{
			OutputDir:    outputDir,
			Library:      cfg.Abs(cfg.Icons.Library),
			Attribute:    cfg.Icons.Attribute,
			JSOutput:     filepath.Join(outputDir, filepath.FromSlash(cfg.Icons.JSOutput)),
			SpriteOutput: filepath.Join(outputDir, filepath.FromSlash(cfg.Icons.SpriteOutput)),
			Minify:       cfg.Icons.Minify,
		}, logger), nil
	}
}

// builderOptions overrides parts of the configured pipeline.
type builderOptions struct {
	outputDir string
	compiler  css.Compiler
	icons     icons.Builder
}

func newBuilder(cfg *config.Config, logger logging.Logger, override builderOptions) (*build.Builder, error) {
	outputDir := override.outputDir
	if outputDir == "" {
		outputDir = cfg.OutputDir()
	}

	compiler := override.compiler
	if compiler == nil {
		c, err := newCompiler(cfg, logger)
		if err != nil {
			return nil, err
		}
		compiler = c
	}

	iconBuilder := override.icons
	if iconBuilder == nil {
		ib, err := newIconBuilder(cfg, outputDir, logger)
		if err != nil {
			return nil, err
		}
		iconBuilder = ib
	}

	return build.NewBuilder(build.Options{
		SourceDir:       cfg.SourceDir(),
		OutputDir:       outputDir,
		MediaDir:        cfg.MediaSourceDir(),
		Ignore:          cfg.Ignore,
		IncludeMaxDepth: cfg.Include.MaxDepth,
		Compiler:        compiler,
		Icons:           iconBuilder,
		Logger:          logger,
	})
}

func printSummary(result *build.Result) {
	fmt.Printf("Built %d page(s), %d stylesheet(s), %d copied file(s) in %s\n",
		result.PagesCompiled, result.StylesheetsCompiled, result.FilesCopied, result.Duration.Round(time.Millisecond))
	if n := len(result.Errors); n > 0 {
		fmt.Printf("%d non-fatal error(s); see the log above\n", n)
	}
}
