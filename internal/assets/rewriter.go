// Package assets rewrites local stylesheet and script references in built
// HTML and mirrors the referenced files into the output tree.
package assets

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/sitebuild/internal/errors"
	"github.com/conneroisu/sitebuild/internal/graph"
	"github.com/conneroisu/sitebuild/internal/validation"
)

// Kind distinguishes stylesheet and script references.
type Kind int

const (
	KindCSS Kind = iota
	KindJS
)

func (k Kind) String() string {
	if k == KindCSS {
		return "css"
	}
	return "js"
}

// Ref is one local asset reference found in a page.
type Ref struct {
	Kind Kind
	// Original is the reference as written in the source HTML.
	Original string
	// Rewritten is the reference as emitted in the output HTML.
	Rewritten string
	// Source is the absolute path of the referenced source file.
	Source string
	// Output is the absolute path the rewritten reference points at.
	Output string
	// Missing is set when Source did not exist at rewrite time.
	Missing bool
}

var (
	referencePattern = regexp.MustCompile(`(?i)((?:href|src)=["'])([^"']+\.(?:css|js))(["'])`)
	schemePattern    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)
)

// IsLocal reports whether ref points into the site rather than at a remote
// or protocol-relative URL.
func IsLocal(ref string) bool {
	if strings.HasPrefix(ref, "//") {
		return false
	}
	return !schemePattern.MatchString(ref)
}

// PageBase returns the file name of page without its extension.
func PageBase(page string) string {
	base := filepath.Base(page)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Rewriter rewrites references for pages under one source root.
type Rewriter struct {
	sourceRoot string
	outputRoot string
}

// NewRewriter creates a rewriter. Both roots should be absolute.
func NewRewriter(sourceRoot, outputRoot string) *Rewriter {
	return &Rewriter{
		sourceRoot: filepath.Clean(sourceRoot),
		outputRoot: filepath.Clean(outputRoot),
	}
}

// Rewrite renames every local stylesheet reference in html to
// `<pageBase>_<name>.css` and leaves script references unchanged. page is
// the absolute source path of the page. Every referenced source that exists
// is recorded in deps; missing and out-of-root references are returned as
// non-fatal errors.
func (rw *Rewriter) Rewrite(html, page string) (string, []Ref, graph.Deps, []error) {
	deps := graph.NewDeps()
	var refs []Ref
	var errs []error
	pageBase := PageBase(page)

	out := referencePattern.ReplaceAllStringFunc(html, func(match string) string {
		sub := referencePattern.FindStringSubmatch(match)
		prefix, ref, suffix := sub[1], sub[2], sub[3]
		if !IsLocal(ref) {
			return match
		}

		source, ok := rw.resolve(rw.sourceRoot, page, ref)
		if !ok {
			errs = append(errs, errors.NewAssetMissing(ref, nil).
				WithContext("page", page).
				WithContext("reason", "reference escapes source root"))
			return match
		}

		r := Ref{Original: ref, Rewritten: ref, Source: source, Kind: KindJS}
		if strings.EqualFold(path.Ext(ref), ".css") {
			r.Kind = KindCSS
			r.Rewritten = PrefixBase(ref, pageBase)
		}
		r.Output, _ = rw.resolve(rw.outputRoot, rw.mirror(page), r.Rewritten)

		if _, err := os.Stat(source); err != nil {
			r.Missing = true
			errs = append(errs, errors.NewAssetMissing(source, err).WithContext("page", page))
		} else {
			deps.Add(source)
		}
		refs = append(refs, r)
		return prefix + r.Rewritten + suffix
	})

	return out, refs, deps, errs
}

// CompiledStylesheets scans already rewritten HTML for the page's own
// stylesheet references (`<pageBase>_*.css`) and maps each back to its
// source stylesheet.
func (rw *Rewriter) CompiledStylesheets(html, page string) []Ref {
	var refs []Ref
	prefix := PageBase(page) + "_"

	for _, sub := range referencePattern.FindAllStringSubmatch(html, -1) {
		ref := sub[2]
		if !IsLocal(ref) || !strings.EqualFold(path.Ext(ref), ".css") {
			continue
		}
		dir, file := splitRef(ref)
		if !strings.HasPrefix(file, prefix) || len(file) == len(prefix) {
			continue
		}
		original := dir + strings.TrimPrefix(file, prefix)

		source, ok := rw.resolve(rw.sourceRoot, page, original)
		if !ok {
			continue
		}
		output, _ := rw.resolve(rw.outputRoot, rw.mirror(page), ref)

		r := Ref{Kind: KindCSS, Original: original, Rewritten: ref, Source: source, Output: output}
		if _, err := os.Stat(source); err != nil {
			r.Missing = true
		}
		refs = append(refs, r)
	}

	return refs
}

// CopyJS mirrors a script reference into the output tree.
func (rw *Rewriter) CopyJS(ref Ref) error {
	if ref.Kind != KindJS {
		return fmt.Errorf("not a script reference: %s", ref.Original)
	}
	if err := CopyFile(ref.Source, ref.Output); err != nil {
		return errors.NewCopy(ref.Source, err)
	}
	return nil
}

// Mirror maps a path under the source root to the same relative path under
// the output root. ok is false when source lies outside the source root.
func (rw *Rewriter) Mirror(source string) (string, bool) {
	if !validation.WithinRoot(rw.sourceRoot, source) {
		return "", false
	}
	return rw.mirror(source), true
}

func (rw *Rewriter) mirror(source string) string {
	rel, err := filepath.Rel(rw.sourceRoot, source)
	if err != nil {
		return filepath.Join(rw.outputRoot, filepath.Base(source))
	}
	return filepath.Join(rw.outputRoot, rel)
}

// resolve maps a reference to an absolute path under root. References
// starting with ./ or ../ resolve against the directory of page, everything
// else against root.
func (rw *Rewriter) resolve(root, page, ref string) (string, bool) {
	var p string
	if strings.HasPrefix(ref, "./") || strings.HasPrefix(ref, "../") {
		p = filepath.Join(filepath.Dir(page), filepath.FromSlash(ref))
	} else {
		p = filepath.Join(root, filepath.FromSlash(strings.TrimLeft(ref, "/")))
	}
	if !validation.WithinRoot(root, p) {
		return "", false
	}
	return p, true
}

// PrefixBase inserts `<pageBase>_` before the file name of ref, keeping the
// directory part byte for byte.
func PrefixBase(ref, pageBase string) string {
	dir, file := splitRef(ref)
	return dir + pageBase + "_" + file
}

func splitRef(ref string) (dir, file string) {
	i := strings.LastIndex(ref, "/")
	return ref[:i+1], ref[i+1:]
}
