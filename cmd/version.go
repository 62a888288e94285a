package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitebuild/internal/version"
)

var (
	versionFlags *StandardFlags
	versionShort bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the sitebuild version, commit, build time, Go version and
target platform.

Examples:
  sitebuild version
  sitebuild version --short
  sitebuild version --format json`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionFlags = AddStandardFlags(versionCmd, "text-output")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if err := versionFlags.ValidateFlags(); err != nil {
		return err
	}
	return writeVersion(cmd.OutOrStdout(), version.Get(), versionFlags.OutputFormat, versionShort)
}

func writeVersion(w io.Writer, info *version.BuildInfo, format string, short bool) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			*version.BuildInfo
			IsRelease bool `json:"is_release"`
		}{info, info.IsRelease()})
	}

	if short {
		_, err := fmt.Fprintln(w, info.Short())
		return err
	}
	_, err := fmt.Fprintf(w, "sitebuild\n%s\n", info.String())
	return err
}
