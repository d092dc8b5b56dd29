// Package server exposes generated maps over HTTP together with health and
// Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Addr    string
	MapsDir string
}

type Server struct {
	cfg     Config
	metrics *metrics.Provider
	logger  zerolog.Logger
	router  chi.Router
}

func New(cfg Config, m *metrics.Provider, logger zerolog.Logger) *Server {
	s := &Server{cfg: cfg, metrics: m, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/", s.listMaps)
	r.Handle("/maps/*", http.StripPrefix("/maps/", http.FileServer(http.Dir(s.cfg.MapsDir))))
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// listMaps links every HTML document under the maps directory, newest first.
func (s *Server) listMaps(w http.ResponseWriter, _ *http.Request) {
	links, err := collectLinks(s.cfg.MapsDir)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list maps")
		http.Error(w, "failed to list maps", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := document.RenderListing(w, document.Listing{Links: links}); err != nil {
		s.logger.Error().Err(err).Msg("failed to render listing")
	}
}

func collectLinks(root string) ([]document.Link, error) {
	type entry struct {
		link    document.Link
		modTime time.Time
	}
	var entries []entry
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		entries = append(entries, entry{
			link: document.Link{
				Name:     rel,
				Href:     path.Join("/maps", rel),
				Modified: info.ModTime().Format("2006-01-02 15:04"),
			},
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].modTime.After(entries[j].modTime)
		}
		return entries[i].link.Name < entries[j].link.Name
	})
	links := make([]document.Link, len(entries))
	for i, e := range entries {
		links[i] = e.link
	}
	return links, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", s.cfg.Addr).Str("maps_dir", s.cfg.MapsDir).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
