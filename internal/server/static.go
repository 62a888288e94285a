package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"github.com/andybalholm/brotli"

	"github.com/conneroisu/sitebuild/internal/validation"
)

// DefaultContentType is served for extensions missing from the MIME table.
const DefaultContentType = "application/octet-stream"

var mimeTypes = map[string]string{
	".html":  "text/html",
	".css":   "text/css",
	".js":    "text/javascript",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".ogg":   "video/ogg",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
}

// ContentType returns the MIME type for a file name.
func ContentType(name string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return DefaultContentType
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, contentType, ok := s.lookup(r.URL.Path)
	if !ok {
		s.notFound(w, r)
		return
	}

	if contentType == "text/html" && s.liveReload {
		data = InjectReloadScript(data)
	}
	s.write(w, r, http.StatusOK, contentType, data)
}

// lookup reads the file for urlPath. `/` maps to index.html and a miss is
// retried with `.html` appended, which is then served as HTML.
func (s *Server) lookup(urlPath string) ([]byte, string, bool) {
	clean := path.Clean("/" + urlPath)
	if clean == "/" || strings.HasSuffix(urlPath, "/") {
		clean = path.Join(clean, "index.html")
	}

	filePath := filepath.Join(s.root, filepath.FromSlash(clean))
	if !validation.WithinRoot(s.root, filePath) {
		return nil, "", false
	}

	if data, err := readRegular(filePath); err == nil {
		return data, ContentType(filePath), true
	}
	if data, err := readRegular(filePath + ".html"); err == nil {
		return data, "text/html", true
	}
	return nil, "", false
}

func readRegular(name string) ([]byte, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(name)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := NotFoundPage().Render(r.Context(), &buf); err != nil {
		http.Error(w, "404 - File Not Found", http.StatusNotFound)
		return
	}
	s.write(w, r, http.StatusNotFound, "text/html", buf.Bytes())
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, contentType string, data []byte) {
	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "no-cache")

	if s.compress && compressible(contentType) {
		header.Add("Vary", "Accept-Encoding")
		if acceptsBrotli(r) {
			header.Set("Content-Encoding", "br")
			w.WriteHeader(status)
			if r.Method == http.MethodHead {
				return
			}
			bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
			if _, err := bw.Write(data); err != nil {
				s.logger.Debug(r.Context(), "Response write failed", "error", err.Error())
			}
			if err := bw.Close(); err != nil {
				s.logger.Debug(r.Context(), "Response write failed", "error", err.Error())
			}
			return
		}
	}

	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		s.logger.Debug(r.Context(), "Response write failed", "error", err.Error())
	}
}

func compressible(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		contentType == "application/json" ||
		contentType == "image/svg+xml"
}

func acceptsBrotli(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(name) != "br" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}

// reloadScript reconnects after server restarts. css_update swaps
// stylesheets in place, build_error only logs, anything else reloads.
const reloadScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  function connect() {
    var ws = new WebSocket(proto + "//" + location.host + "` + LiveReloadPath + `");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "css_update") {
        document.querySelectorAll('link[rel="stylesheet"]').forEach(function (link) {
          var url = new URL(link.href);
          url.searchParams.set("t", Date.now());
          link.href = url.toString();
        });
      } else if (msg.type === "build_error") {
        console.warn("[sitebuild]", msg.content);
      } else {
        location.reload();
      }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
`

// InjectReloadScript inserts the live-reload script before the last
// `</body>`, or appends it when the document has none.
func InjectReloadScript(html []byte) []byte {
	idx := bytes.LastIndex(html, []byte("</body>"))
	if upper := bytes.LastIndex(html, []byte("</BODY>")); upper > idx {
		idx = upper
	}
	if idx < 0 {
		return append(append([]byte{}, html...), reloadScript...)
	}
	out := make([]byte, 0, len(html)+len(reloadScript))
	out = append(out, html[:idx]...)
	out = append(out, reloadScript...)
	return append(out, html[idx:]...)
}

// notFoundBody is the whole 404 response. The requested path is not echoed.
const notFoundBody = "<h1>404 - File Not Found</h1>"

// NotFoundPage renders the minimal 404 body.
func NotFoundPage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, notFoundBody)
		return err
	})
}
