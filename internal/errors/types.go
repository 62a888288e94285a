package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a build failure. None of the kinds abort a build; they are
// logged and collected so a build always produces a best-effort output tree.
type Kind string

const (
	KindIncludeMissing Kind = "include_missing"
	KindIncludeCycle   Kind = "include_cycle"
	KindAssetMissing   Kind = "asset_missing"
	KindCSSCompile     Kind = "css_compile"
	KindPageCompile    Kind = "page_compile"
	KindCopy           Kind = "copy"
	KindIconBuild      Kind = "icon_build"
	KindWatchEvent     Kind = "watch_event"
	KindConfig         Kind = "config"
)

// BuildError is a structured error with the offending path attached.
type BuildError struct {
	Kind    Kind
	Path    string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Kind)}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BuildError of the same kind.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}

	return false
}

// WithContext adds context information to the error.
func (e *BuildError) WithContext(key string, value interface{}) *BuildError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// New creates a BuildError of the given kind.
func New(kind Kind, path, message string, cause error) *BuildError {
	return &BuildError{
		Kind:    kind,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// NewIncludeMissing reports an include directive whose target does not exist.
func NewIncludeMissing(path string) *BuildError {
	return New(KindIncludeMissing, path, "include target not found", nil)
}

// NewIncludeCycle reports an include chain that revisits a file.
func NewIncludeCycle(chain []string) *BuildError {
	path := ""
	if len(chain) > 0 {
		path = chain[len(chain)-1]
	}
	return New(KindIncludeCycle, path, "include cycle: "+strings.Join(chain, " -> "), nil).
		WithContext("chain", chain)
}

// NewAssetMissing reports a referenced CSS/JS source that does not exist.
func NewAssetMissing(path string, cause error) *BuildError {
	return New(KindAssetMissing, path, "asset source not found", cause)
}

// NewCSSCompile reports a failed external stylesheet compilation.
func NewCSSCompile(path string, cause error) *BuildError {
	return New(KindCSSCompile, path, "stylesheet compilation failed", cause)
}

// NewPageCompile reports a page that could not be read or written.
func NewPageCompile(path string, cause error) *BuildError {
	return New(KindPageCompile, path, "page compilation failed", cause)
}

// NewCopy reports a failed verbatim file copy.
func NewCopy(path string, cause error) *BuildError {
	return New(KindCopy, path, "copy failed", cause)
}

// NewIconBuild reports a failed icon-subsetting step.
func NewIconBuild(cause error) *BuildError {
	return New(KindIconBuild, "", "icon build failed", cause)
}

// NewWatchEvent reports a failure while handling one watcher event.
func NewWatchEvent(path string, cause error) *BuildError {
	return New(KindWatchEvent, path, "watch event failed", cause)
}

// KindOf returns the kind of err, or "" when err is not a BuildError.
func KindOf(err error) Kind {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind
	}

	return ""
}

// Logger is the subset of logging.Logger used to report errors.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Report logs err with its structured fields. Missing inputs are warnings,
// everything else is an error.
func Report(ctx context.Context, logger Logger, err error) {
	if err == nil || logger == nil {
		return
	}

	var be *BuildError
	if !errors.As(err, &be) {
		logger.Error(ctx, err, "build failure")
		return
	}

	fields := []interface{}{"kind", string(be.Kind)}
	if be.Path != "" {
		fields = append(fields, "path", be.Path)
	}
	for k, v := range be.Context {
		fields = append(fields, k, v)
	}

	switch be.Kind {
	case KindIncludeMissing, KindAssetMissing:
		logger.Warn(ctx, be.Cause, be.Message, fields...)
	default:
		logger.Error(ctx, be.Cause, be.Message, fields...)
	}
}
