// Package ui serves live charts of benchmark runs.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/lineagebench/internal/ui/notifier"
	"github.com/leapstack-labs/lineagebench/internal/ui/router"
	"github.com/leapstack-labs/lineagebench/pkg/core"
	"golang.org/x/sync/errgroup"
)

// watchDebounce coalesces bursts of writes to the state database.
const watchDebounce = 200 * time.Millisecond

// Server is the main UI server.
type Server struct {
	store     core.Store
	statePath string
	port      int
	watch     bool
	dev       bool
	logger    *slog.Logger
	notifier  *notifier.Notifier
}

// Config holds configuration for the UI server.
type Config struct {
	Store core.Store
	// StatePath is the state database file; with Watch, writes to it by
	// other processes refresh open pages.
	StatePath string
	Port      int
	Watch     bool
	Dev       bool
	Logger    *slog.Logger
	// Notifier is shared with an in-process bench engine (optional).
	Notifier *notifier.Notifier
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := cfg.Notifier
	if n == nil {
		n = notifier.New()
	}
	return &Server{
		store:     cfg.Store,
		statePath: cfg.StatePath,
		port:      cfg.Port,
		watch:     cfg.Watch,
		dev:       cfg.Dev,
		logger:    logger,
		notifier:  n,
	}
}

// Handler builds the router with all routes and middleware.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.store, s.notifier, s.dev, s.logger); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.watchable() {
		eg.Go(func() error {
			return s.watchState(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

func (s *Server) watchable() bool {
	return s.statePath != "" && !strings.Contains(s.statePath, ":memory:")
}

// watchState watches the state database's directory and broadcasts an
// unattributed update after writes to the database or its WAL.
func (s *Server) watchState(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.statePath)
	base := filepath.Base(s.statePath)
	if err := watcher.Add(dir); err != nil {
		s.logger.Error("failed to watch state directory", "dir", dir, "error", err)
		// serve without live refresh
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				s.logger.Debug("state changed", "file", event.Name)
				s.notifier.Broadcast(notifier.Update{})
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// requestLogger logs every request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
