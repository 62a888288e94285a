// Package include expands `<!-- include: path -->` directives in HTML text.
package include

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/sitebuild/internal/errors"
	"github.com/conneroisu/sitebuild/internal/graph"
	"github.com/conneroisu/sitebuild/internal/logging"
)

// DefaultMaxDepth bounds include nesting independently of cycle detection.
const DefaultMaxDepth = 32

var directivePattern = regexp.MustCompile(`<!--\s*include:\s*(.+?)\s*-->`)

// Resolver expands include directives recursively.
type Resolver struct {
	logger   logging.Logger
	maxDepth int
}

// NewResolver creates a resolver. A nil logger discards debug output.
func NewResolver(logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		logger:   logger.WithComponent("include"),
		maxDepth: DefaultMaxDepth,
	}
}

// WithMaxDepth returns a copy of r with a different nesting limit.
func (r *Resolver) WithMaxDepth(depth int) *Resolver {
	cp := *r
	cp.maxDepth = depth
	return &cp
}

// Resolve expands every directive in text. Relative targets resolve against
// baseDir; nested targets resolve against the directory of the file that
// contains them. Every resolved absolute path is returned in deps whether or
// not it exists. Missing targets and cycles expand to "" and are returned as
// non-fatal errors. ancestors lists files already being expanded, normally
// the page itself, so that a page including itself is caught immediately.
func (r *Resolver) Resolve(text, baseDir string, ancestors ...string) (string, graph.Deps, []error) {
	st := &state{deps: graph.NewDeps()}
	stack := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		if abs, err := filepath.Abs(a); err == nil {
			stack = append(stack, abs)
		}
	}

	out := r.expand(text, baseDir, stack, st)
	return out, st.deps, st.errs
}

type state struct {
	deps graph.Deps
	errs []error
}

func (r *Resolver) expand(text, baseDir string, stack []string, st *state) string {
	return directivePattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := directivePattern.FindStringSubmatch(match)
		target := strings.TrimSpace(sub[1])
		if target == "" {
			return ""
		}

		path := target
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, target)
		}
		path, err := filepath.Abs(path)
		if err != nil {
			st.errs = append(st.errs, errors.New(errors.KindIncludeMissing, target, "include path could not be resolved", err))
			return ""
		}
		st.deps.Add(path)

		for _, active := range stack {
			if active == path {
				chain := append(append([]string{}, stack...), path)
				st.errs = append(st.errs, errors.NewIncludeCycle(chain))
				return ""
			}
		}
		if len(stack) >= r.maxDepth {
			st.errs = append(st.errs, errors.New(errors.KindIncludeCycle, path, "include depth limit exceeded", nil).
				WithContext("depth", len(stack)))
			return ""
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				st.errs = append(st.errs, errors.NewIncludeMissing(path))
			} else {
				st.errs = append(st.errs, errors.New(errors.KindIncludeMissing, path, "include target unreadable", err))
			}
			return ""
		}

		r.logger.Debug(context.Background(), "Expanding include", "path", path, "depth", len(stack))

		next := append(stack[:len(stack):len(stack)], path)
		return r.expand(string(content), filepath.Dir(path), next, st)
	})
}
