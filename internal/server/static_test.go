package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitebuild/internal/config"
	"github.com/conneroisu/sitebuild/internal/testutils"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*Server, string) {
	t.Helper()
	projectDir, _, dist := testutils.CreateTempSite(t)
	require.NoError(t, os.MkdirAll(dist, 0o755))

	cfg := testutils.CreateTestConfig(projectDir)
	cfg.Server.LiveReload = false
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(cfg, nil)
	require.NoError(t, err)
	return s, dist
}

func get(t *testing.T, h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"index.html":     "text/html",
		"a/b/site.CSS":   "text/css",
		"app.js":         "text/javascript",
		"data.json":      "application/json",
		"logo.svg":       "image/svg+xml",
		"clip.webm":      "video/webm",
		"font.woff2":     "font/woff2",
		"archive.tar.gz": DefaultContentType,
		"no-extension":   DefaultContentType,
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestStaticServing(t *testing.T) {
	s, dist := newTestServer(t, nil)
	testutils.WriteSite(t, dist, map[string]string{
		"index.html":           "<html><body>home</body></html>",
		"about.html":           "<p>about</p>",
		"blog/index.html":      "<p>blog</p>",
		"assets/css/x.css":     ".x{}",
		"assets/images/a.webp": "webp",
		"download.bin":         "bin",
	})
	testutils.WriteFile(t, filepath.Dir(dist), "secret.txt", "top-secret-payload")
	h := s.Handler()

	tests := []struct {
		name        string
		target      string
		status      int
		contentType string
		body        string
	}{
		{"root maps to index", "/", http.StatusOK, "text/html", "home"},
		{"direct file", "/assets/css/x.css", http.StatusOK, "text/css", ".x{}"},
		{"html retry", "/about", http.StatusOK, "text/html", "<p>about</p>"},
		{"directory index", "/blog/", http.StatusOK, "text/html", "<p>blog</p>"},
		{"image", "/assets/images/a.webp", http.StatusOK, "image/webp", "webp"},
		{"unknown extension", "/download.bin", http.StatusOK, DefaultContentType, "bin"},
		{"missing", "/nope", http.StatusNotFound, "text/html", "404 - File Not Found"},
		{"directory without index", "/assets", http.StatusNotFound, "text/html", "404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	s, dist := newTestServer(t, nil)
	testutils.WriteFile(t, filepath.Dir(dist), "secret.txt", "top-secret-payload")

	for _, target := range []string{"/../secret.txt", "/assets/../../secret.txt", "../secret.txt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = target
		rec := httptest.NewRecorder()
		s.handleStatic(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, notFoundBody, rec.Body.String(), target)
		assert.NotContains(t, rec.Body.String(), "top-secret-payload", target)
	}

	for _, target := range testutils.SecurityTestCases.PathTraversal {
		_, _, ok := s.lookup(target)
		assert.False(t, ok, target)
	}
}

func TestNotFoundPageIsMinimal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NotFoundPage().Render(context.Background(), &buf))
	assert.Equal(t, "<h1>404 - File Not Found</h1>", buf.String())

	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/%3Cscript%3Ealert(1)%3C/script%3E")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "<h1>404 - File Not Found</h1>", rec.Body.String())
}

func TestMethodHandling(t *testing.T) {
	s, dist := newTestServer(t, nil)
	testutils.WriteFile(t, dist, "index.html", "<p>home</p>")
	h := s.Handler()

	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReloadScriptInjection(t *testing.T) {
	s, dist := newTestServer(t, func(cfg *config.Config) { cfg.Server.LiveReload = true })
	testutils.WriteSite(t, dist, map[string]string{
		"index.html": "<html><body><p>home</p></body></html>",
		"app.js":     "console.log(1)",
	})
	h := s.Handler()

	body := get(t, h, "/").Body.String()
	assert.Contains(t, body, LiveReloadPath)
	assert.Less(t, bytes.Index([]byte(body), []byte("<script>")), bytes.Index([]byte(body), []byte("</body>")))

	assert.Equal(t, "console.log(1)", get(t, h, "/app.js").Body.String())
}

func TestInjectReloadScript(t *testing.T) {
	out := string(InjectReloadScript([]byte("<BODY>x</BODY>")))
	assert.Contains(t, out, "<BODY>x<script>")
	assert.True(t, bytes.HasSuffix([]byte(out), []byte("</script>\n</BODY>")))

	out = string(InjectReloadScript([]byte("<p>fragment</p>")))
	assert.True(t, bytes.HasPrefix([]byte(out), []byte("<p>fragment</p><script>")))
}

func TestBrotliCompression(t *testing.T) {
	s, dist := newTestServer(t, func(cfg *config.Config) { cfg.Server.Compress = true })
	page := "<p>" + string(bytes.Repeat([]byte("compress me "), 100)) + "</p>"
	testutils.WriteSite(t, dist, map[string]string{
		"index.html": page,
		"a.png":      "png",
	})
	h := s.Handler()

	rec := get(t, h, "/", "Accept-Encoding", "gzip, br")
	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
	decoded, err := io.ReadAll(brotli.NewReader(rec.Body))
	require.NoError(t, err)
	assert.Equal(t, page, string(decoded))

	rec = get(t, h, "/", "Accept-Encoding", "br;q=0")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, page, rec.Body.String())

	rec = get(t, h, "/a.png", "Accept-Encoding", "br")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "png", rec.Body.String())
}
