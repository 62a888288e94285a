package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitebuild/internal/server"
	"github.com/conneroisu/sitebuild/internal/watcher"
)

// runWatch performs a full build, then watches the source tree and serves
// the output until SIGINT or SIGTERM.
func runWatch(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	builder, err := newBuilder(cfg, logger, builderOptions{})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	result, err := builder.FullBuild(ctx)
	if err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}
	printSummary(result)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	builder.AddCallback(srv.NotifyBuild)

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(builder.Accepts)
	fileWatcher.AddHandler(builder.OnChange)
	if err := fileWatcher.AddRecursive(cfg.SourceDir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.SourceDir(), err)
	}
	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	logger.Info(ctx, "Watching for changes", "source", cfg.SourceDir())
	fmt.Printf("Serving %s at http://%s (Ctrl+C to stop)\n", cfg.OutputDir(), cfg.Addr())

	return srv.Start(ctx)
}
