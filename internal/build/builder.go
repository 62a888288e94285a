package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/sitebuild/internal/assets"
	"github.com/conneroisu/sitebuild/internal/css"
	"github.com/conneroisu/sitebuild/internal/errors"
	"github.com/conneroisu/sitebuild/internal/graph"
	"github.com/conneroisu/sitebuild/internal/icons"
	"github.com/conneroisu/sitebuild/internal/include"
	"github.com/conneroisu/sitebuild/internal/logging"
	"github.com/conneroisu/sitebuild/internal/validation"
	"github.com/conneroisu/sitebuild/internal/watcher"
)

// File classes handled by incremental dispatch.
var (
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".webp": true, ".svg": true, ".ico": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".webm": true, ".ogg": true,
	}
)

// Options configures a Builder. SourceDir and OutputDir must be absolute.
type Options struct {
	SourceDir string
	OutputDir string
	// MediaDir is copied verbatim on full builds. Relative paths resolve
	// against SourceDir.
	MediaDir string
	// Ignore holds doublestar patterns relative to SourceDir.
	Ignore []string
	// IncludeMaxDepth bounds include nesting. Zero means include.DefaultMaxDepth.
	IncludeMaxDepth int
	Compiler        css.Compiler
	Icons           icons.Builder
	Logger          logging.Logger
}

// Builder owns the dependency graph and runs full and incremental builds.
// Builds are serialized; a build in progress always runs to completion.
type Builder struct {
	opts      Options
	graph     *graph.DependencyGraph
	resolver  *include.Resolver
	rewriter  *assets.Rewriter
	keep      watcher.FileFilter
	metrics   *BuildMetrics
	logger    logging.Logger
	callbacks []BuildCallback
	cbMutex   sync.RWMutex
	mutex     sync.Mutex
}

// NewBuilder validates opts and creates a builder with an empty graph.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.SourceDir == "" || opts.OutputDir == "" {
		return nil, fmt.Errorf("source and output directories are required")
	}
	if !filepath.IsAbs(opts.SourceDir) || !filepath.IsAbs(opts.OutputDir) {
		return nil, fmt.Errorf("source and output directories must be absolute")
	}
	opts.SourceDir = filepath.Clean(opts.SourceDir)
	opts.OutputDir = filepath.Clean(opts.OutputDir)
	if validation.WithinRoot(opts.OutputDir, opts.SourceDir) || validation.WithinRoot(opts.SourceDir, opts.OutputDir) {
		return nil, fmt.Errorf("output directory %s overlaps source directory %s", opts.OutputDir, opts.SourceDir)
	}
	if opts.MediaDir != "" && !filepath.IsAbs(opts.MediaDir) {
		opts.MediaDir = filepath.Join(opts.SourceDir, opts.MediaDir)
	}
	if opts.Compiler == nil {
		opts.Compiler = css.NopCompiler{}
	}
	if opts.Icons == nil {
		opts.Icons = icons.NopBuilder{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	ignore := watcher.IgnoreFilter(opts.SourceDir, opts.Ignore)

	resolver := include.NewResolver(opts.Logger)
	if opts.IncludeMaxDepth > 0 {
		resolver = resolver.WithMaxDepth(opts.IncludeMaxDepth)
	}

	return &Builder{
		opts:     opts,
		graph:    graph.NewDependencyGraph(),
		resolver: resolver,
		rewriter: assets.NewRewriter(opts.SourceDir, opts.OutputDir),
		keep: func(path string) bool {
			if path != opts.SourceDir && !watcher.NoHiddenFilter(path) {
				return false
			}
			return ignore(path)
		},
		metrics: NewBuildMetrics(),
		logger:  opts.Logger.WithComponent("build"),
	}, nil
}

// Graph returns the live dependency graph.
func (b *Builder) Graph() *graph.DependencyGraph {
	return b.graph
}

// Metrics returns the builder's metrics.
func (b *Builder) Metrics() *BuildMetrics {
	return b.metrics
}

// Accepts reports whether path is inside the source tree and not hidden or
// ignored. It doubles as a watcher filter.
func (b *Builder) Accepts(path string) bool {
	if !validation.WithinRoot(b.opts.SourceDir, path) {
		return false
	}
	for p := filepath.Clean(path); p != b.opts.SourceDir; p = filepath.Dir(p) {
		if !b.keep(p) {
			return false
		}
	}
	return true
}

// AddCallback registers a function called after every build.
func (b *Builder) AddCallback(callback BuildCallback) {
	b.cbMutex.Lock()
	defer b.cbMutex.Unlock()
	b.callbacks = append(b.callbacks, callback)
}

// FullBuild wipes the output tree and the graph and rebuilds everything.
// Per-file failures are collected in the result; the returned error is set
// only when the output tree could not be reset or the source tree walked.
func (b *Builder) FullBuild(ctx context.Context) (*Result, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	op := logging.StartOperation(b.logger, "full_build")
	r := newRun(KindFull, b.opts.SourceDir, "full")

	if err := os.RemoveAll(b.opts.OutputDir); err != nil {
		return b.complete(ctx, r), fmt.Errorf("failed to clean output directory: %w", err)
	}
	if err := os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
		return b.complete(ctx, r), fmt.Errorf("failed to create output directory: %w", err)
	}
	b.graph.Clear()

	pages, err := b.discoverPages()
	if err != nil {
		return b.complete(ctx, r), fmt.Errorf("failed to walk source tree: %w", err)
	}
	for _, page := range pages {
		if ctx.Err() != nil {
			return b.complete(ctx, r), ctx.Err()
		}
		_ = b.compilePage(ctx, r, page, PageOptions{CopyJS: true})
	}

	b.copyMedia(ctx, r)
	b.buildIcons(ctx, r)

	result := b.complete(ctx, r)
	op.End(ctx,
		"build_id", result.BuildID,
		"pages", result.PagesCompiled,
		"stylesheets", result.StylesheetsCompiled,
		"errors", len(result.Errors),
	)
	return result, nil
}

// HandleChange applies one watcher event incrementally. Events outside the
// source tree, under ignored paths, or with unhandled extensions produce an
// empty result.
func (b *Builder) HandleChange(ctx context.Context, event watcher.ChangeEvent) (*Result, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	path := filepath.Clean(event.Path)
	r := newRun(KindIncremental, path, event.Type.String())

	if !b.Accepts(path) {
		b.logger.Debug(ctx, "Ignoring change", "path", path, "event", event.Type.String())
		return b.complete(ctx, r), nil
	}

	if event.Type == watcher.EventTypeUnlink {
		b.handleUnlink(ctx, r, path)
		return b.complete(ctx, r), nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".css":
		b.handleStylesheet(ctx, r, path)
	case ext == ".js", imageExtensions[ext], videoExtensions[ext]:
		b.copyOne(ctx, r, path)
	case ext == ".html":
		b.handlePage(ctx, r, path)
	default:
		b.logger.Debug(ctx, "No action for file type", "path", path)
	}

	return b.complete(ctx, r), nil
}

// OnChange adapts HandleChange to a watcher.ChangeHandler.
func (b *Builder) OnChange(ctx context.Context, event watcher.ChangeEvent) error {
	_, err := b.HandleChange(ctx, event)
	return err
}

func (b *Builder) handleStylesheet(ctx context.Context, r *run, path string) {
	pages := b.graph.DependentsOf(path)
	if len(pages) == 0 {
		b.logger.Debug(ctx, "Stylesheet has no dependents", "path", path)
		return
	}
	b.logger.Info(ctx, "Recompiling stylesheets", "path", path, "pages", len(pages))
	for _, page := range pages {
		_ = b.recompileStylesheets(ctx, r, page)
	}
}

func (b *Builder) handlePage(ctx context.Context, r *run, path string) {
	affected := graph.NewDeps(b.graph.DependentsOf(path)...)
	if b.graph.HasPage(path) {
		affected.Add(path)
	}
	if len(affected) == 0 {
		// An HTML file nobody depends on is a new page.
		affected.Add(path)
	}

	b.logger.Info(ctx, "Recompiling pages", "path", path, "pages", len(affected))
	for _, page := range affected.Sorted() {
		_ = b.compilePage(ctx, r, page, PageOptions{CopyJS: false})
	}
	b.buildIcons(ctx, r)
}

// handleUnlink treats path as a prefix so deleting a directory unlinks every
// tracked page and dependency below it.
func (b *Builder) handleUnlink(ctx context.Context, r *run, path string) {
	deleted := b.trackedUnder(path)
	if len(deleted) == 0 {
		b.logger.Debug(ctx, "Deleted path was not tracked", "path", path)
		return
	}

	removedPages := graph.NewDeps()
	for _, p := range deleted {
		if b.graph.HasPage(p) {
			removedPages.Add(p)
		}
	}

	dependents := graph.NewDeps()
	for _, p := range deleted {
		for _, page := range b.graph.RemoveDependency(p) {
			dependents.Add(page)
		}
	}

	for _, page := range removedPages.Sorted() {
		b.graph.RemovePage(page)
		if output, ok := b.rewriter.Mirror(page); ok {
			if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
				b.fail(ctx, r, errors.NewCopy(output, err))
			}
		}
		r.result.PagesRemoved++
		b.logger.Info(ctx, "Removed page", "page", page)
	}

	for _, page := range dependents.Sorted() {
		if removedPages.Has(page) {
			continue
		}
		_ = b.compilePage(ctx, r, page, PageOptions{CopyJS: true})
	}

	if r.result.PagesRemoved > 0 || r.result.PagesCompiled > 0 {
		b.buildIcons(ctx, r)
	}
}

func (b *Builder) trackedUnder(path string) []string {
	known := graph.NewDeps(b.graph.Dependencies()...)
	known.Merge(graph.NewDeps(b.graph.Pages()...))

	var out []string
	for _, p := range known.Sorted() {
		if p == path || strings.HasPrefix(p, path+string(filepath.Separator)) {
			out = append(out, p)
		}
	}
	return out
}

func (b *Builder) copyOne(ctx context.Context, r *run, path string) {
	output, ok := b.rewriter.Mirror(path)
	if !ok {
		return
	}
	if err := assets.CopyFile(path, output); err != nil {
		b.fail(ctx, r, errors.NewCopy(path, err))
		return
	}
	r.result.FilesCopied++
	b.logger.Debug(ctx, "Copied file", "path", path, "output", output)
}

func (b *Builder) copyMedia(ctx context.Context, r *run) {
	if b.opts.MediaDir == "" {
		return
	}
	output, ok := b.rewriter.Mirror(b.opts.MediaDir)
	if !ok {
		b.fail(ctx, r, errors.NewCopy(b.opts.MediaDir, fmt.Errorf("media directory is outside the source root")))
		return
	}
	copied, err := assets.CopyTree(b.opts.MediaDir, output, func(path string, err error) {
		b.fail(ctx, r, errors.NewCopy(path, err))
	})
	if err != nil {
		b.fail(ctx, r, errors.NewCopy(b.opts.MediaDir, err))
	}
	r.result.FilesCopied += copied
}

func (b *Builder) buildIcons(ctx context.Context, r *run) {
	if err := b.opts.Icons.Build(ctx); err != nil {
		b.fail(ctx, r, errors.NewIconBuild(err))
		return
	}
	r.result.IconsBuilt = true
}

// discoverPages returns every accepted .html file under the source root in
// lexical order.
func (b *Builder) discoverPages() ([]string, error) {
	var pages []string
	err := filepath.WalkDir(b.opts.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !b.keep(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".html") {
			pages = append(pages, path)
		}
		return nil
	})
	return pages, err
}

func (b *Builder) fail(ctx context.Context, r *run, errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		r.errs.Add(err)
		errors.Report(ctx, b.logger, err)
	}
}

func (b *Builder) complete(ctx context.Context, r *run) *Result {
	result := r.finish()
	b.metrics.RecordBuild(result)

	b.cbMutex.RLock()
	callbacks := make([]BuildCallback, len(b.callbacks))
	copy(callbacks, b.callbacks)
	b.cbMutex.RUnlock()

	for _, callback := range callbacks {
		callback(result)
	}

	if result.Kind == KindIncremental && result.Changed() {
		b.logger.Info(ctx, "Incremental build complete",
			"build_id", result.BuildID,
			"trigger", result.Trigger,
			"event", result.Event,
			"pages", result.PagesCompiled,
			"stylesheets", result.StylesheetsCompiled,
			"duration", result.Duration.String(),
		)
	}
	return result
}
