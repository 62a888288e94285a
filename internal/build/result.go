package build

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/conneroisu/sitebuild/internal/errors"
)

// Kind distinguishes full builds from incremental ones.
type Kind string

const (
	KindFull        Kind = "full"
	KindIncremental Kind = "incremental"
)

// Result summarizes one build. Errors holds the non-fatal failures; a
// build never stops on them.
type Result struct {
	BuildID             string
	Kind                Kind
	Trigger             string
	Event               string
	PagesCompiled       int
	PagesRemoved        int
	StylesheetsCompiled int
	FilesCopied         int
	IconsBuilt          bool
	Errors              []error
	StartedAt           time.Time
	Duration            time.Duration
}

// Changed reports whether the build touched the output tree.
func (r *Result) Changed() bool {
	return r.PagesCompiled+r.PagesRemoved+r.StylesheetsCompiled+r.FilesCopied > 0 || r.IconsBuilt
}

// BuildCallback is called when a build completes
type BuildCallback func(result *Result)

// run carries the state of one build.
type run struct {
	result *Result
	errs   *errors.ErrorCollector
}

func newRun(kind Kind, trigger, event string) *run {
	return &run{
		result: &Result{
			BuildID:   ksuid.New().String(),
			Kind:      kind,
			Trigger:   trigger,
			Event:     event,
			StartedAt: time.Now(),
		},
		errs: errors.NewErrorCollector(),
	}
}

func (r *run) finish() *Result {
	r.result.Errors = r.errs.Errors()
	r.result.Duration = time.Since(r.result.StartedAt)
	return r.result
}
