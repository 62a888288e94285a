package cmd

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether the output directory is up to date",
	Long: `Run a full build into a temporary directory and compare it with the
configured output directory. Text files (HTML, CSS, JS, SVG, JSON) that
differ are printed as unified diffs; other files are compared byte for byte.
The command fails when anything is missing, extra or different.`,
	RunE: runCheck,
}

var checkQuiet bool

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Only list stale paths")
}

// textExtensions are diffed line by line.
var textExtensions = map[string]bool{
	".html": true,
	".css":  true,
	".js":   true,
	".svg":  true,
	".json": true,
}

// staleFile describes one difference between two output trees.
type staleFile struct {
	Path   string
	Reason string
	Diff   string
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	cfg, logger, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	outputDir := cfg.OutputDir()
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("output directory %s does not exist; run sitebuild build first", outputDir)
	}

	tmp, err := os.MkdirTemp("", "sitebuild-check-")
	if err != nil {
		return fmt.Errorf("failed to create temporary output: %w", err)
	}
	defer os.RemoveAll(tmp)

	builder, err := newBuilder(cfg, logger, builderOptions{outputDir: tmp})
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}
	if _, err := builder.FullBuild(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	stale, err := compareTrees(tmp, outputDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(stale) == 0 {
		fmt.Fprintln(out, "Output is up to date")
		return nil
	}
	writeStale(out, stale, checkQuiet)
	return fmt.Errorf("%d file(s) out of date in %s", len(stale), outputDir)
}

// compareTrees lists the differences of actual relative to expected.
func compareTrees(expected, actual string) ([]staleFile, error) {
	want, err := listFiles(expected)
	if err != nil {
		return nil, err
	}
	have, err := listFiles(actual)
	if err != nil {
		return nil, err
	}

	var stale []staleFile
	for rel := range want {
		if !have[rel] {
			stale = append(stale, staleFile{Path: rel, Reason: "missing"})
			continue
		}
		s, err := compareFile(rel, filepath.Join(expected, rel), filepath.Join(actual, rel))
		if err != nil {
			return nil, err
		}
		if s != nil {
			stale = append(stale, *s)
		}
	}
	for rel := range have {
		if !want[rel] {
			stale = append(stale, staleFile{Path: rel, Reason: "extra"})
		}
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i].Path < stale[j].Path })
	return stale, nil
}

func compareFile(rel, expectedPath, actualPath string) (*staleFile, error) {
	want, err := os.ReadFile(expectedPath)
	if err != nil {
		return nil, err
	}
	have, err := os.ReadFile(actualPath)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(want, have) {
		return nil, nil
	}

	s := &staleFile{Path: rel, Reason: "changed"}
	if !textExtensions[strings.ToLower(filepath.Ext(rel))] {
		return s, nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(have)),
		B:        difflib.SplitLines(string(want)),
		FromFile: "output/" + rel,
		ToFile:   "fresh/" + rel,
		Context:  3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s: %w", rel, err)
	}
	s.Diff = diff
	return s, nil
}

// listFiles returns the slash-separated relative paths of regular files under root.
func listFiles(root string) (map[string]bool, error) {
	files := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	return files, nil
}

func writeStale(w io.Writer, stale []staleFile, quiet bool) {
	for _, s := range stale {
		fmt.Fprintf(w, "%-8s %s\n", s.Reason, s.Path)
		if !quiet && s.Diff != "" {
			fmt.Fprint(w, s.Diff)
		}
	}
}
