// Package internal contains the implementation packages of sitebuild.
//
// # Package Organization
//
//   - build: full and incremental builds, results and metrics
//   - graph: page to source-file dependency graph
//   - include: recursive <!-- include: --> expansion with cycle detection
//   - assets: stylesheet and script reference rewriting, verbatim copies
//   - css: @import chains and the external Tailwind compiler
//   - icons: icon-name scanning and subset generation
//   - watcher: fsnotify monitoring with optional debouncing
//   - server: static file server with live reload over WebSocket
//   - config: Viper-backed configuration and validation
//   - errors: structured, non-fatal build errors
//   - logging: slog-based structured logging
//   - validation: path containment and command argument checks
//
// # Data Flow
//
// The watcher delivers change events to build.Builder, which consults the
// dependency graph to find the affected pages, recompiles them and passes
// the Result to the server. The server tells connected browsers to swap
// stylesheets or reload.
package internal
