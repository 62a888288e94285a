package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitebuild/internal/errors"
)

type site struct {
	src, dist string
}

func newSite(t *testing.T) site {
	t.Helper()
	root := t.TempDir()
	return site{src: filepath.Join(root, "src"), dist: filepath.Join(root, "dist")}
}

func (s site) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(s.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		ref   string
		local bool
	}{
		{"assets/css/site.css", true},
		{"/assets/js/app.js", true},
		{"./app.js", true},
		{"../shared/app.js", true},
		{"//cdn.example.com/x.js", false},
		{"https://cdn.example.com/x.css", false},
		{"http://cdn.example.com/x.css", false},
		{"data:text/css,body.css", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.local, IsLocal(tt.ref))
		})
	}
}

func TestRewriteRenamesStylesheets(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "home.html", "")
	css := s.write(t, "assets/css/site.css", "body{}")
	js := s.write(t, "assets/js/app.js", "1")

	html := `<link href="assets/css/site.css" rel="stylesheet"><script src='assets/js/app.js'></script>`
	out, refs, deps, errs := NewRewriter(s.src, s.dist).Rewrite(html, page)

	assert.Empty(t, errs)
	assert.Equal(t, `<link href="assets/css/home_site.css" rel="stylesheet"><script src='assets/js/app.js'></script>`, out)
	assert.True(t, deps.Has(css))
	assert.True(t, deps.Has(js))
	require.Len(t, refs, 2)

	assert.Equal(t, KindCSS, refs[0].Kind)
	assert.Equal(t, css, refs[0].Source)
	assert.Equal(t, filepath.Join(s.dist, "assets", "css", "home_site.css"), refs[0].Output)

	assert.Equal(t, KindJS, refs[1].Kind)
	assert.Equal(t, filepath.Join(s.dist, "assets", "js", "app.js"), refs[1].Output)
}

func TestRewriteLeavesRemoteReferences(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "index.html", "")

	html := `<link href="https://cdn.example.com/a.css"><script src="//cdn.example.com/b.js"></script>`
	out, refs, deps, errs := NewRewriter(s.src, s.dist).Rewrite(html, page)

	assert.Equal(t, html, out)
	assert.Empty(t, refs)
	assert.Empty(t, deps)
	assert.Empty(t, errs)
}

func TestRewriteMissingSource(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "index.html", "")

	out, refs, deps, errs := NewRewriter(s.src, s.dist).Rewrite(`<link href="assets/css/gone.css">`, page)

	assert.Equal(t, `<link href="assets/css/index_gone.css">`, out)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].Missing)
	assert.False(t, deps.Has(filepath.Join(s.src, "assets", "css", "gone.css")))
	assert.Empty(t, deps)
	require.Len(t, errs, 1)
	assert.Equal(t, errors.KindAssetMissing, errors.KindOf(errs[0]))
}

func TestRewritePageRelativeReference(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "blog/post.html", "")
	css := s.write(t, "blog/post.css", "")

	out, refs, _, errs := NewRewriter(s.src, s.dist).Rewrite(`<link HREF="./post.css">`, page)

	assert.Empty(t, errs)
	assert.Equal(t, `<link HREF="./post_post.css">`, out)
	require.Len(t, refs, 1)
	assert.Equal(t, css, refs[0].Source)
	assert.Equal(t, filepath.Join(s.dist, "blog", "post_post.css"), refs[0].Output)
}

func TestRewriteRootedReferenceFromNestedPage(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "blog/post.html", "")
	css := s.write(t, "assets/css/main.css", "")

	out, refs, _, _ := NewRewriter(s.src, s.dist).Rewrite(`<link href="/assets/css/main.css">`, page)

	assert.Equal(t, `<link href="/assets/css/post_main.css">`, out)
	require.Len(t, refs, 1)
	assert.Equal(t, css, refs[0].Source)
	assert.Equal(t, filepath.Join(s.dist, "assets", "css", "post_main.css"), refs[0].Output)
}

func TestRewriteRejectsEscapingReference(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "index.html", "")

	html := `<script src="../../outside.js"></script>`
	out, refs, deps, errs := NewRewriter(s.src, s.dist).Rewrite(html, page)

	assert.Equal(t, html, out)
	assert.Empty(t, refs)
	assert.Empty(t, deps)
	require.Len(t, errs, 1)
}

func TestCompiledStylesheets(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "my_page.html", "")
	css := s.write(t, "assets/css/site_theme.css", "")

	html := `<link href="assets/css/my_page_site_theme.css"><link href="assets/css/other_x.css"><link href="https://x/my_page_a.css">`
	refs := NewRewriter(s.src, s.dist).CompiledStylesheets(html, page)

	require.Len(t, refs, 1)
	assert.Equal(t, "assets/css/site_theme.css", refs[0].Original)
	assert.Equal(t, css, refs[0].Source)
	assert.Equal(t, filepath.Join(s.dist, "assets", "css", "my_page_site_theme.css"), refs[0].Output)
	assert.False(t, refs[0].Missing)
}

func TestCopyJS(t *testing.T) {
	s := newSite(t)
	page := s.write(t, "index.html", "")
	s.write(t, "assets/js/app.js", "console.log(1)")

	rw := NewRewriter(s.src, s.dist)
	_, refs, _, _ := rw.Rewrite(`<script src="assets/js/app.js"></script>`, page)
	require.Len(t, refs, 1)
	require.NoError(t, rw.CopyJS(refs[0]))

	data, err := os.ReadFile(filepath.Join(s.dist, "assets", "js", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))

	assert.Error(t, rw.CopyJS(Ref{Kind: KindCSS}))
}

func TestMirror(t *testing.T) {
	s := newSite(t)
	rw := NewRewriter(s.src, s.dist)

	out, ok := rw.Mirror(filepath.Join(s.src, "a", "b.png"))
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(s.dist, "a", "b.png"), out)

	_, ok = rw.Mirror(filepath.Join(s.dist, "x"))
	assert.False(t, ok)
}

func TestPrefixBase(t *testing.T) {
	assert.Equal(t, "index_site.css", PrefixBase("site.css", "index"))
	assert.Equal(t, "./a/index_site.css", PrefixBase("./a/site.css", "index"))
	assert.Equal(t, "index", PageBase("/src/blog/index.html"))
}
