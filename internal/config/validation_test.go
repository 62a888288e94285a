package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Source:     "src",
		Output:     "dist",
		MediaDir:   "assets/images",
		ProjectDir: "/project",
		Include:    IncludeConfig{MaxDepth: DefaultIncludeDepth},
		CSS:        CSSConfig{Command: "npx tailwindcss", Config: "tailwind.config.js"},
		Icons:      IconsConfig{Mode: IconsBuiltin},
		Server:     ServerConfig{Host: "localhost", Port: 3000},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidateValid(t *testing.T) {
	result := Validate(validConfig())

	assert.False(t, result.HasErrors(), result.String())
	// /project/src does not exist in the test environment.
	assert.Len(t, result.Warnings, 1)
}

func TestValidateIconCommand(t *testing.T) {
	c := validConfig()
	c.Icons.Mode = IconsCommand
	c.Icons.Command = ""

	result := Validate(c)
	assert.True(t, result.HasErrors())
	assert.Equal(t, "icons.command", result.Errors[0].Field)
}

func TestValidateIncludeDepth(t *testing.T) {
	c := validConfig()
	c.Include.MaxDepth = 0

	result := Validate(c)
	assert.True(t, result.HasErrors())
	assert.Equal(t, "include.max_depth", result.Errors[0].Field)
}

func TestValidationResultString(t *testing.T) {
	c := validConfig()
	c.Server.Port = -1
	c.Log.Format = "xml"

	out := Validate(c).String()
	assert.Contains(t, out, "server.port")
	assert.Contains(t, out, "log.format")
	assert.Contains(t, out, "warning source")
}

func TestValidateHost(t *testing.T) {
	c := validConfig()
	c.Server.Host = "localhost;rm"

	assert.True(t, Validate(c).HasErrors())
}
