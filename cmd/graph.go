package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitebuild/internal/config"
	"github.com/conneroisu/sitebuild/internal/css"
	"github.com/conneroisu/sitebuild/internal/icons"
)

var graphCmd = &cobra.Command{
	Use:     "graph",
	Aliases: []string{"g"},
	Short:   "Print the dependency graph",
	Long: `Build the site into a temporary directory, without running the CSS
compiler or the icon step, and print which source files each page depends
on. With --reverse, print which pages each source file affects instead.

Examples:
  sitebuild graph
  sitebuild graph --format json
  sitebuild graph --reverse --format yaml`,
	RunE: runGraph,
}

var (
	graphFlags   *StandardFlags
	graphReverse bool
)

func init() {
	rootCmd.AddCommand(graphCmd)
	graphFlags = AddStandardFlags(graphCmd, "output")
	graphCmd.Flags().BoolVar(&graphReverse, "reverse", false, "Print dependents per source file")
}

// graphEntry is one row of graph output. Paths are relative to the
// project directory.
type graphEntry struct {
	Path    string   `json:"path" yaml:"path"`
	Related []string `json:"related" yaml:"related"`
}

func runGraph(cmd *cobra.Command, _ []string) error {
	if err := graphFlags.ValidateFlags(); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "sitebuild-graph-")
	if err != nil {
		return fmt.Errorf("failed to create temporary output: %w", err)
	}
	defer os.RemoveAll(tmp)

	builder, err := newBuilder(cfg, logger, builderOptions{
		outputDir: tmp,
		compiler:  css.NopCompiler{},
		icons:     icons.NopBuilder{},
	})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	if _, err := builder.FullBuild(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	index := builder.Graph().Snapshot()
	if graphReverse {
		index = builder.Graph().Reverse()
	}
	entries := graphEntries(cfg, index)

	out := cmd.OutOrStdout()
	switch graphFlags.OutputFormat {
	case "json":
		return writeGraphJSON(out, entries)
	case "yaml":
		return writeGraphYAML(out, entries)
	default:
		return writeGraphTable(out, entries, graphReverse)
	}
}

func graphEntries(cfg *config.Config, index map[string][]string) []graphEntry {
	rel := func(p string) string {
		if r, err := filepath.Rel(cfg.ProjectDir, p); err == nil && !strings.HasPrefix(r, "..") {
			return filepath.ToSlash(r)
		}
		return p
	}

	entries := make([]graphEntry, 0, len(index))
	for path, related := range index {
		e := graphEntry{Path: rel(path), Related: make([]string, 0, len(related))}
		for _, r := range related {
			e.Related = append(e.Related, rel(r))
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func writeGraphJSON(w io.Writer, entries []graphEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

func writeGraphYAML(w io.Writer, entries []graphEntry) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(entries)
}

func writeGraphTable(w io.Writer, entries []graphEntry, reverse bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if reverse {
		fmt.Fprintln(tw, "SOURCE\tPAGES")
		fmt.Fprintln(tw, "------\t-----")
	} else {
		fmt.Fprintln(tw, "PAGE\tDEPENDENCIES")
		fmt.Fprintln(tw, "----\t------------")
	}
	for _, e := range entries {
		for i, r := range e.Related {
			first := ""
			if i == 0 {
				first = e.Path
			}
			fmt.Fprintf(tw, "%s\t%s\n", first, r)
		}
	}
	return tw.Flush()
}
