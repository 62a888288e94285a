package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once",
	Long: `Wipe the output directory and rebuild every page, stylesheet, script,
media file and the icon bundle. Per-file failures are logged and the build
continues.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
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
		return fmt.Errorf("build failed: %w", err)
	}
	printSummary(result)
	return nil
}
