package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitebuild/internal/assets"
	"github.com/conneroisu/sitebuild/internal/css"
	"github.com/conneroisu/sitebuild/internal/errors"
	"github.com/conneroisu/sitebuild/internal/graph"
)

// PageOptions controls one page compilation.
type PageOptions struct {
	// CopyJS mirrors referenced scripts into the output tree. Incremental
	// HTML rebuilds skip it.
	CopyJS bool
}

// CompilePage compiles one source page and replaces its graph entry.
func (b *Builder) CompilePage(ctx context.Context, page string, opts PageOptions) (*Result, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	r := newRun(KindIncremental, page, "compile")
	err := b.compilePage(ctx, r, page, opts)
	return b.complete(ctx, r), err
}

// compilePage resolves includes, rewrites asset references, writes the
// output HTML, compiles the page's stylesheets against it, optionally copies
// scripts, and finally replaces the page's dependency set. A read or write
// failure of the page itself leaves the graph untouched.
func (b *Builder) compilePage(ctx context.Context, r *run, page string, opts PageOptions) error {
	output, ok := b.rewriter.Mirror(page)
	if !ok {
		err := errors.NewPageCompile(page, fmt.Errorf("page is outside the source root %s", b.opts.SourceDir))
		b.fail(ctx, r, err)
		return err
	}

	source, err := os.ReadFile(page)
	if err != nil {
		be := errors.NewPageCompile(page, err)
		b.fail(ctx, r, be)
		return be
	}

	deps := graph.NewDeps()

	expanded, includeDeps, problems := b.resolver.Resolve(string(source), filepath.Dir(page), page)
	deps.Merge(includeDeps)
	b.fail(ctx, r, problems...)

	final, refs, assetDeps, problems := b.rewriter.Rewrite(expanded, page)
	deps.Merge(assetDeps)
	b.fail(ctx, r, problems...)

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		be := errors.NewPageCompile(page, err)
		b.fail(ctx, r, be)
		return be
	}
	if err := os.WriteFile(output, []byte(final), 0o644); err != nil {
		be := errors.NewPageCompile(page, err)
		b.fail(ctx, r, be)
		return be
	}
	r.result.PagesCompiled++
	b.logger.Debug(ctx, "Built page", "page", page, "output", output)

	deps.Add(page)

	deps.Merge(b.compileStylesheets(ctx, r, page, output, stylesheetRefs(refs)))

	if opts.CopyJS {
		for _, ref := range refs {
			if ref.Kind != assets.KindJS || ref.Missing {
				continue
			}
			if err := b.rewriter.CopyJS(ref); err != nil {
				b.fail(ctx, r, err)
				continue
			}
			r.result.FilesCopied++
		}
	}

	b.graph.SetDependencies(page, deps)
	return nil
}

// recompileStylesheets re-runs only the stylesheet step of a page, reading
// the references back from its existing output HTML. The page is compiled
// in full when no output exists yet.
func (b *Builder) recompileStylesheets(ctx context.Context, r *run, page string) error {
	output, ok := b.rewriter.Mirror(page)
	if !ok {
		return nil
	}

	html, err := os.ReadFile(output)
	if os.IsNotExist(err) {
		return b.compilePage(ctx, r, page, PageOptions{CopyJS: true})
	}
	if err != nil {
		be := errors.NewPageCompile(page, err)
		b.fail(ctx, r, be)
		return be
	}

	refs := b.rewriter.CompiledStylesheets(string(html), page)
	chain := b.compileStylesheets(ctx, r, page, output, refs)

	deps := graph.NewDeps(b.graph.DependenciesOf(page)...)
	deps.Merge(chain)
	b.graph.SetDependencies(page, deps)
	return nil
}

// compileStylesheets compiles each distinct stylesheet once with the page's
// output HTML as content and returns the union of their import chains.
func (b *Builder) compileStylesheets(ctx context.Context, r *run, page, content string, refs []assets.Ref) graph.Deps {
	chain := graph.NewDeps()
	done := make(map[string]bool, len(refs))

	for _, ref := range refs {
		if done[ref.Output] {
			continue
		}
		done[ref.Output] = true

		if ref.Missing {
			continue
		}
		chain.Merge(css.CollectImports(ref.Source, nil))

		if err := b.opts.Compiler.Compile(ctx, ref.Source, ref.Output, content); err != nil {
			b.fail(ctx, r, errors.NewCSSCompile(ref.Source, err).WithContext("page", page))
			continue
		}
		r.result.StylesheetsCompiled++
	}

	return chain
}

func stylesheetRefs(refs []assets.Ref) []assets.Ref {
	out := make([]assets.Ref, 0, len(refs))
	for _, ref := range refs {
		if ref.Kind == assets.KindCSS {
			out = append(out, ref)
		}
	}
	return out
}
