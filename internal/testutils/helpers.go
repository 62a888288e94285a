// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitebuild/internal/config"
)

// CreateTempSite creates a project directory with empty src and dist
// roots and returns their absolute paths.
func CreateTempSite(t *testing.T) (projectDir, sourceDir, outputDir string) {
	t.Helper()
	projectDir = t.TempDir()
	sourceDir = filepath.Join(projectDir, config.DefaultSource)
	outputDir = filepath.Join(projectDir, config.DefaultOutput)

	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	return projectDir, sourceDir, outputDir
}

// WriteFile writes content to root/rel, creating parent directories, and
// returns the absolute path.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteSite writes every entry of files under root.
func WriteSite(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
}

// ReadFile returns the content of root/rel.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

const standardIndex = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="assets/css/main.css">
</head>
<body>
  <h1 class="text-xl">Home</h1>
  <!-- include: partials/footer.html -->
  <script src="assets/js/app.js"></script>
</body>
</html>
`

const standardMainCSS = `@import "base.css";
@import "tailwindcss/base";
.main { color: red; }
`

// StandardSite is the include/stylesheet/script layout most build tests
// start from. Paths are relative to the source root.
var StandardSite = map[string]string{
	"index.html":           standardIndex,
	"partials/footer.html": `<footer>footer</footer>`,
	"assets/css/main.css":  standardMainCSS,
	"assets/css/base.css":  `body { margin: 0; }`,
	"assets/js/app.js":     `console.log("app");`,
}

// CreateTestConfig returns a configuration rooted at projectDir with the
// defaults Load would apply.
func CreateTestConfig(projectDir string) *config.Config {
	return &config.Config{
		Source:   config.DefaultSource,
		Output:   config.DefaultOutput,
		MediaDir: config.DefaultMediaDir,
		Ignore:   []string{"**/.*", "**/node_modules/**"},
		Include:  config.IncludeConfig{MaxDepth: config.DefaultIncludeDepth},
		CSS: config.CSSConfig{
			Command:    config.DefaultCSSCommand,
			Config:     "tailwind.config.js",
			ContentEnv: "TAILWIND_CONTENT",
			Timeout:    60 * time.Second,
		},
		Icons: config.IconsConfig{
			Mode:         config.IconsOff,
			Command:      config.DefaultIconCommand,
			Library:      "node_modules/lucide-static/icons",
			Attribute:    "data-lucide",
			JSOutput:     "assets/js/lucide-custom.js",
			SpriteOutput: "assets/icons/lucide-custom.svg",
		},
		Server: config.ServerConfig{
			Host:       config.DefaultHost,
			Port:       config.DefaultPort,
			LiveReload: true,
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "text",
		},
		ProjectDir: projectDir,
	}
}

// SecurityTestCases provides common attack vectors for path and command
// validation tests.
var SecurityTestCases = struct {
	PathTraversal    []string
	CommandInjection []string
}{
	PathTraversal: []string{
		"../../../etc/passwd",
		"/./../../etc/passwd",
		"../../../../../etc/passwd",
		"assets/../../../etc/passwd",
	},
	CommandInjection: []string{
		"tailwindcss; rm -rf /",
		"tailwindcss && rm -rf /",
		"tailwindcss | rm -rf /",
		"tailwindcss`rm -rf /`",
		"tailwindcss$(rm -rf /)",
		"tailwindcss\nrm -rf /",
	},
}

// ModTime returns the modification time of path.
func ModTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

// Backdate sets the modification time of every file under root one hour
// into the past so that later writes are detectable on coarse clocks.
func Backdate(t *testing.T, root string) {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return os.Chtimes(path, past, past)
	})
	require.NoError(t, err)
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
