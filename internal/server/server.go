// Package server serves the output tree during development and pushes
// reload notifications to connected browsers after each rebuild.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sitebuild/internal/build"
	"github.com/conneroisu/sitebuild/internal/config"
	"github.com/conneroisu/sitebuild/internal/logging"
)

// LiveReloadPath is the websocket endpoint used by the injected script.
const LiveReloadPath = "/__livereload"

// Message types sent to the browser.
const (
	MessageFullReload = "full_reload"
	MessageCSSUpdate  = "css_update"
	MessageBuildError = "build_error"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	BuildID   string    `json:"build_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server serves the output directory with optional live reload.
type Server struct {
	root        string
	addr        string
	port        int
	liveReload  bool
	compress    bool
	hub         *hub
	logger      logging.Logger
	httpServer  *http.Server
	serverMutex sync.RWMutex
}

// New creates a dev server for cfg's output directory.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	return &Server{
		root:       cfg.OutputDir(),
		addr:       cfg.Addr(),
		port:       cfg.Server.Port,
		liveReload: cfg.Server.LiveReload,
		compress:   cfg.Server.Compress,
		hub:        newHub(logger),
		logger:     logger,
	}, nil
}

// Handler returns the HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.liveReload {
		mux.HandleFunc(LiveReloadPath, s.handleWebSocket)
	}
	mux.HandleFunc("/", s.handleStatic)
	return s.logRequests(mux)
}

// Start runs the websocket hub and the HTTP listener until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Server shutdown failed")
		}
	}()

	s.logger.Info(ctx, "Server is running", "url", "http://"+s.addr, "root", s.root)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the listener and disconnects every live-reload client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()

	s.serverMutex.RLock()
	server := s.httpServer
	s.serverMutex.RUnlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// NotifyBuild is a build.BuildCallback that tells connected browsers to
// reload. Stylesheet-only rebuilds swap stylesheets in place.
func (s *Server) NotifyBuild(result *build.Result) {
	if result == nil {
		return
	}

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			msgs = append(msgs, err.Error())
		}
		s.broadcastMessage(UpdateMessage{
			Type:      MessageBuildError,
			Target:    result.Trigger,
			Content:   strings.Join(msgs, "\n"),
			BuildID:   result.BuildID,
			Timestamp: time.Now(),
		})
	}

	if !result.Changed() {
		return
	}

	msgType := MessageFullReload
	if result.StylesheetsCompiled > 0 &&
		result.PagesCompiled+result.PagesRemoved+result.FilesCopied == 0 {
		msgType = MessageCSSUpdate
	}
	s.broadcastMessage(UpdateMessage{
		Type:      msgType,
		Target:    result.Trigger,
		BuildID:   result.BuildID,
		Timestamp: time.Now(),
	})
}

func (s *Server) broadcastMessage(msg UpdateMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn(context.Background(), err, "Failed to marshal message")
		jsonData = []byte(`{"type":"full_reload"}`)
	}
	s.hub.broadcast(jsonData)
}

// ClientCount returns the number of connected live-reload clients.
func (s *Server) ClientCount() int {
	return s.hub.count()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}
