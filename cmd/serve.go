package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitebuild/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the existing output directory",
	Long: `Serve the output directory as it is, without building or watching.
Live reload stays connected but is never triggered.`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags = AddStandardFlags(serveCmd, "server")
	serveCmd.PreRun = bindServerFlags
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := serveFlags.ValidateFlags(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.OutputDir()); err != nil {
		return fmt.Errorf("output directory %s is not readable, run `sitebuild build` first: %w", cfg.OutputDir(), err)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Printf("Serving %s at http://%s (Ctrl+C to stop)\n", cfg.OutputDir(), cfg.Addr())
	return srv.Start(ctx)
}
