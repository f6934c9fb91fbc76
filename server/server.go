// Package server exposes the chat service over HTTP and serves the browser
// frontend.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tk103331/eino-chatlab/chat"
	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/logger"
	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/store"
)

//go:embed static
var staticFiles embed.FS

const shutdownTimeout = 10 * time.Second

// Service is what the handlers need from the chat service
type Service interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
	GenerateReadme(ctx context.Context, info store.ProjectInfo) (*chat.Reply, error)
	History(ctx context.Context, participantID string) ([]chat.Exchange, error)
	LogEvent(ctx context.Context, e chat.Event) error
	Segmenter() *segment.Segmenter
}

// Server is the HTTP frontend of a chat service
type Server struct {
	cfg    config.Server
	svc    Service
	router chi.Router
}

// New builds the router. Static files come from cfg.StaticDir when set and
// from the embedded frontend otherwise.
func New(svc Service, cfg config.Server) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("server: service is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultMaxBodyBytes
	}

	static, err := staticFS(cfg.StaticDir)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/chat", s.handleChat)
	r.Post("/history", s.handleHistory)
	r.Post("/log-event", s.handleLogEvent)
	r.Post("/project-info", s.handleProjectInfo)
	r.Post("/render", s.handleRender)
	r.Handle("/*", http.FileServer(http.FS(static)))

	s.router = r
	return s, nil
}

func staticFS(dir string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("server: static dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("server: static dir is not a directory: %s", dir)
		}
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("server: embedded static: %w", err)
	}
	return sub, nil
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("SERVER", fmt.Sprintf("listening on %s", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("SERVER", "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("HTTP", fmt.Sprintf("%s %s %d %dB %s req=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context())))
	})
}
