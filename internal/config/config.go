// Package config loads sitebuild settings using Viper from a YAML file,
// SITEBUILD_ environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values shared by Load and the command-line flags.
const (
	DefaultSource      = "src"
	DefaultOutput      = "dist"
	DefaultMediaDir    = "assets/images"
	DefaultPort        = 3000
	DefaultHost        = "localhost"
	DefaultCSSCommand  = "npx tailwindcss"
	DefaultIconCommand = "node build-icons.js"

	// DefaultIncludeDepth bounds include nesting independently of cycle detection.
	DefaultIncludeDepth = 32
)

type Config struct {
	Source   string        `yaml:"source"    mapstructure:"source"`
	Output   string        `yaml:"output"    mapstructure:"output"`
	MediaDir string        `yaml:"media_dir" mapstructure:"media_dir"`
	Ignore   []string      `yaml:"ignore"    mapstructure:"ignore"`
	Include  IncludeConfig `yaml:"include"   mapstructure:"include"`
	CSS      CSSConfig     `yaml:"css"       mapstructure:"css"`
	Icons    IconsConfig   `yaml:"icons"     mapstructure:"icons"`
	Server   ServerConfig  `yaml:"server"    mapstructure:"server"`
	Watch    WatchConfig   `yaml:"watch"     mapstructure:"watch"`
	Log      LogConfig     `yaml:"log"       mapstructure:"log"`

	// ProjectDir anchors relative paths. It is the working directory at load time.
	ProjectDir string   `yaml:"-" mapstructure:"-"`
	Warnings   []string `yaml:"-" mapstructure:"-"`
}

type IncludeConfig struct {
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
}

type CSSConfig struct {
	Command    string        `yaml:"command"     mapstructure:"command"`
	Config     string        `yaml:"config"      mapstructure:"config"`
	ContentEnv string        `yaml:"content_env" mapstructure:"content_env"`
	Minify     bool          `yaml:"minify"      mapstructure:"minify"`
	Timeout    time.Duration `yaml:"timeout"     mapstructure:"timeout"`
}

// Icon step modes.
const (
	IconsBuiltin = "builtin"
	IconsCommand = "command"
	IconsOff     = "off"
)

type IconsConfig struct {
	Mode         string `yaml:"mode"          mapstructure:"mode"`
	Command      string `yaml:"command"       mapstructure:"command"`
	Library      string `yaml:"library"       mapstructure:"library"`
	Attribute    string `yaml:"attribute"     mapstructure:"attribute"`
	JSOutput     string `yaml:"js_output"     mapstructure:"js_output"`
	SpriteOutput string `yaml:"sprite_output" mapstructure:"sprite_output"`
	Minify       bool   `yaml:"minify"        mapstructure:"minify"`
}

type ServerConfig struct {
	Host       string `yaml:"host"        mapstructure:"host"`
	Port       int    `yaml:"port"        mapstructure:"port"`
	LiveReload bool   `yaml:"live_reload" mapstructure:"live_reload"`
	Compress   bool   `yaml:"compress"    mapstructure:"compress"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level"  mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers every default with the global viper instance.
func SetDefaults() {
	viper.SetDefault("source", DefaultSource)
	viper.SetDefault("output", DefaultOutput)
	viper.SetDefault("media_dir", DefaultMediaDir)
	viper.SetDefault("ignore", []string{"**/.*", "**/node_modules/**"})

	viper.SetDefault("include.max_depth", DefaultIncludeDepth)

	viper.SetDefault("css.command", DefaultCSSCommand)
	viper.SetDefault("css.config", "tailwind.config.js")
	viper.SetDefault("css.content_env", "TAILWIND_CONTENT")
	viper.SetDefault("css.minify", false)
	viper.SetDefault("css.timeout", 60*time.Second)

	viper.SetDefault("icons.mode", IconsBuiltin)
	viper.SetDefault("icons.command", DefaultIconCommand)
	viper.SetDefault("icons.library", "node_modules/lucide-static/icons")
	viper.SetDefault("icons.attribute", "data-lucide")
	viper.SetDefault("icons.js_output", "assets/js/lucide-custom.js")
	viper.SetDefault("icons.sprite_output", "assets/icons/lucide-custom.svg")
	viper.SetDefault("icons.minify", true)

	viper.SetDefault("server.host", DefaultHost)
	viper.SetDefault("server.port", DefaultPort)
	viper.SetDefault("server.live_reload", true)
	viper.SetDefault("server.compress", false)

	viper.SetDefault("watch.debounce", time.Duration(0))

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load builds a Config from the global viper state and validates it.
func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Viper returns a single comma-joined string when the slice comes from the environment.
	if viper.IsSet("ignore") && len(config.Ignore) == 0 {
		config.Ignore = viper.GetStringSlice("ignore")
	}

	if os.Getenv("MINIFY_TW") != "" {
		config.CSS.Minify = true
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	config.ProjectDir = wd

	result := Validate(&config)
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration:\n%s", result.String())
	}
	for _, w := range result.Warnings {
		config.Warnings = append(config.Warnings, w.Error())
	}

	return &config, nil
}

// Abs resolves p against the project directory.
func (c *Config) Abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	base := c.ProjectDir
	if base == "" {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, p)
}

// SourceDir is the absolute source root.
func (c *Config) SourceDir() string { return c.Abs(c.Source) }

// OutputDir is the absolute output root.
func (c *Config) OutputDir() string { return c.Abs(c.Output) }

// MediaSourceDir is the absolute static-media directory under the source root.
func (c *Config) MediaSourceDir() string {
	return filepath.Join(c.SourceDir(), filepath.FromSlash(c.MediaDir))
}

// CSSCommand splits css.command into program and arguments.
func (c *Config) CSSCommand() []string { return strings.Fields(c.CSS.Command) }

// IconCommand splits icons.command into program and arguments.
func (c *Config) IconCommand() []string { return strings.Fields(c.Icons.Command) }

// Addr is the dev server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
