package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("MINIFY_TW", "")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "src", config.Source)
	assert.Equal(t, "dist", config.Output)
	assert.Equal(t, "assets/images", config.MediaDir)
	assert.Equal(t, 32, config.Include.MaxDepth)
	assert.Equal(t, "npx tailwindcss", config.CSS.Command)
	assert.Equal(t, "tailwind.config.js", config.CSS.Config)
	assert.Equal(t, "TAILWIND_CONTENT", config.CSS.ContentEnv)
	assert.False(t, config.CSS.Minify)
	assert.Equal(t, 60*time.Second, config.CSS.Timeout)
	assert.Equal(t, IconsBuiltin, config.Icons.Mode)
	assert.Equal(t, "data-lucide", config.Icons.Attribute)
	assert.True(t, config.Icons.Minify)
	assert.Equal(t, 3000, config.Server.Port)
	assert.True(t, config.Server.LiveReload)
	assert.False(t, config.Server.Compress)
	assert.Zero(t, config.Watch.Debounce)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, []string{"npx", "tailwindcss"}, config.CSSCommand())
	assert.Equal(t, []string{"node", "build-icons.js"}, config.IconCommand())
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("source", "site")
	viper.Set("output", "public")
	viper.Set("server.port", 8080)
	viper.Set("css.timeout", "5s")
	viper.Set("watch.debounce", "150ms")
	viper.Set("icons.mode", "off")
	viper.Set("include.max_depth", 4)

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "site", config.Source)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 5*time.Second, config.CSS.Timeout)
	assert.Equal(t, 150*time.Millisecond, config.Watch.Debounce)
	assert.Equal(t, IconsOff, config.Icons.Mode)
	assert.Equal(t, 4, config.Include.MaxDepth)
	assert.Equal(t, "localhost:8080", config.Addr())
}

func TestLoadMinifyEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("MINIFY_TW", "1")

	config, err := Load()
	require.NoError(t, err)
	assert.True(t, config.CSS.Minify)
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	file := filepath.Join(dir, ".sitebuild.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
source: pages
output: out
ignore:
  - "**/drafts/**"
css:
  content_env: CONTENT_FILE
server:
  port: 4000
  live_reload: false
`), 0o644))

	viper.SetConfigFile(file)
	require.NoError(t, viper.ReadInConfig())

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pages", config.Source)
	assert.Equal(t, []string{"**/drafts/**"}, config.Ignore)
	assert.Equal(t, "CONTENT_FILE", config.CSS.ContentEnv)
	assert.Equal(t, 4000, config.Server.Port)
	assert.False(t, config.Server.LiveReload)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"bad port", func() { viper.Set("server.port", 70000) }},
		{"unparsable port", func() { viper.Set("server.port", "invalid_port") }},
		{"output equals source", func() { viper.Set("output", "src") }},
		{"output contains source", func() { viper.Set("output", "."); viper.Set("source", "site") }},
		{"output inside source", func() { viper.Set("output", "src/dist") }},
		{"empty source", func() { viper.Set("source", " ") }},
		{"css command metacharacters", func() { viper.Set("css.command", "npx tailwindcss; rm -rf /") }},
		{"unknown icon mode", func() { viper.Set("icons.mode", "fancy") }},
		{"bad log level", func() { viper.Set("log.level", "loud") }},
		{"bad glob", func() { viper.Set("ignore", []string{"[a-"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			tt.setup()

			config, err := Load()
			assert.Error(t, err)
			assert.Nil(t, config)
		})
	}
}

func TestConfigPaths(t *testing.T) {
	c := &Config{Source: "src", Output: "/abs/dist", MediaDir: "assets/images", ProjectDir: "/project"}

	assert.Equal(t, filepath.Join("/project", "src"), c.SourceDir())
	assert.Equal(t, "/abs/dist", c.OutputDir())
	assert.Equal(t, filepath.Join("/project", "src", "assets", "images"), c.MediaSourceDir())
}
