package errors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildErrorMessage(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewCSSCompile("/site/src/assets/css/main.css", cause)

	assert.Equal(t, "[css_compile] /site/src/assets/css/main.css stylesheet compilation failed: exit status 1", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestBuildErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("page index.html: %w", NewIncludeMissing("/site/src/partials/nav.html"))

	assert.True(t, errors.Is(wrapped, &BuildError{Kind: KindIncludeMissing}))
	assert.False(t, errors.Is(wrapped, &BuildError{Kind: KindAssetMissing}))
	assert.Equal(t, KindIncludeMissing, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIncludeCycleCarriesChain(t *testing.T) {
	err := NewIncludeCycle([]string{"/a.html", "/b.html", "/a.html"})

	assert.Equal(t, "/a.html", err.Path)
	assert.Contains(t, err.Error(), "/a.html -> /b.html -> /a.html")
	assert.Equal(t, []string{"/a.html", "/b.html", "/a.html"}, err.Context["chain"])
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())

	ec.Add(nil)
	ec.Add(NewAssetMissing("/site/src/app.js", nil))
	ec.Add(NewCSSCompile("/site/src/main.css", errors.New("boom")))
	ec.Add(NewAssetMissing("/site/src/other.js", nil))

	require.Equal(t, 3, ec.Len())
	assert.Len(t, ec.ByKind(KindAssetMissing), 2)
	assert.Len(t, ec.ByKind(KindCSSCompile), 1)

	snapshot := ec.Errors()
	ec.Clear()
	assert.Len(t, snapshot, 3)
	assert.False(t, ec.HasErrors())
}

func TestErrorCollectorConcurrentAdd(t *testing.T) {
	ec := NewErrorCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ec.Add(NewCopy(fmt.Sprintf("/f%d", i), nil))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, ec.Len())
}

type recordingLogger struct {
	warns  []string
	errors []string
	fields [][]interface{}
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.errors = append(r.errors, msg)
	r.fields = append(r.fields, fields)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.warns = append(r.warns, msg)
	r.fields = append(r.fields, fields)
}

func TestReport(t *testing.T) {
	logger := &recordingLogger{}
	ctx := context.Background()

	Report(ctx, logger, NewIncludeMissing("/x.html"))
	Report(ctx, logger, NewPageCompile("/y.html", errors.New("read failed")))
	Report(ctx, logger, errors.New("plain"))
	Report(ctx, logger, nil)

	assert.Equal(t, []string{"include target not found"}, logger.warns)
	assert.Equal(t, []string{"page compilation failed", "build failure"}, logger.errors)
	assert.Contains(t, logger.fields[0], "/x.html")
}
