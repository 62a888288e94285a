package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitebuild/internal/logging"
	"github.com/conneroisu/sitebuild/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// String returns one line per issue, errors first.
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	for _, err := range vr.Errors {
		builder.WriteString(fmt.Sprintf("  error   %s: %s\n", err.Field, err.Message))
		for _, suggestion := range err.Suggestions {
			builder.WriteString(fmt.Sprintf("          hint: %s\n", suggestion))
		}
	}
	for _, warning := range vr.Warnings {
		builder.WriteString(fmt.Sprintf("  warning %s: %s\n", warning.Field, warning.Message))
	}

	return strings.TrimRight(builder.String(), "\n")
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg})
}

// Validate checks every section of config.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validatePaths(config, result)
	validateCSSConfig(&config.CSS, result)
	validateIconsConfig(&config.Icons, result)
	validateServerConfig(&config.Server, result)

	if config.Include.MaxDepth < 1 {
		result.addError("include.max_depth", config.Include.MaxDepth, "must be at least 1")
	}
	if config.Watch.Debounce < 0 {
		result.addError("watch.debounce", config.Watch.Debounce, "must not be negative")
	}
	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		result.addError("log.level", config.Log.Level, err.Error(), "use debug, info, warn or error")
	}
	if config.Log.Format != "" && config.Log.Format != "text" && config.Log.Format != "json" {
		result.addError("log.format", config.Log.Format, "must be text or json")
	}

	return result
}

func validatePaths(config *Config, result *ValidationResult) {
	if strings.TrimSpace(config.Source) == "" {
		result.addError("source", config.Source, "source directory cannot be empty")
	}
	if strings.TrimSpace(config.Output) == "" {
		result.addError("output", config.Output, "output directory cannot be empty")
	}
	if result.HasErrors() {
		return
	}

	fields := []struct{ name, value string }{
		{"source", config.Source},
		{"output", config.Output},
		{"media_dir", config.MediaDir},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := validation.ValidatePath(f.value); err != nil {
			result.addError(f.name, f.value, err.Error())
		}
	}

	src, out := config.SourceDir(), config.OutputDir()
	switch {
	case src == out:
		result.addError("output", config.Output, "output directory must differ from the source directory")
	case validation.WithinRoot(out, src):
		result.addError("output", config.Output, "output directory must not contain the source directory",
			"a full build deletes the output directory first")
	case validation.WithinRoot(src, out):
		result.addError("output", config.Output, "output directory must not be inside the source directory",
			"built pages would be rebuilt as sources")
	}

	if _, err := os.Stat(src); err != nil {
		result.addWarning("source", config.Source, "source directory does not exist")
	}

	for _, pattern := range config.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			result.addError("ignore", pattern, "invalid glob pattern")
		}
	}
}

func validateCSSConfig(config *CSSConfig, result *ValidationResult) {
	if err := validation.ValidateCommand(strings.Fields(config.Command), nil); err != nil {
		result.addError("css.command", config.Command, err.Error())
	}
	if config.Config != "" {
		if err := validation.ValidateArgument(config.Config); err != nil {
			result.addError("css.config", config.Config, err.Error())
		}
	}
	if config.Timeout < 0 {
		result.addError("css.timeout", config.Timeout, "must not be negative")
	}
}

func validateIconsConfig(config *IconsConfig, result *ValidationResult) {
	switch config.Mode {
	case IconsBuiltin, IconsOff:
	case IconsCommand:
		if err := validation.ValidateCommand(strings.Fields(config.Command), nil); err != nil {
			result.addError("icons.command", config.Command, err.Error())
		}
	default:
		result.addError("icons.mode", config.Mode, "unknown icon mode",
			"use builtin, command or off")
	}
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	// 0 lets the system pick a port, used in tests.
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				result.addError("server.host", config.Host, "host contains dangerous character: "+char)
				break
			}
		}
	}
}
