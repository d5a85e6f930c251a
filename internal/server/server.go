// Package server exposes the selection session to a map renderer over a JSON
// API and a WebSocket event stream, and optionally serves basemap tiles.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/locate"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	StaticDir       string // optional demo client served at /
	BasemapPath     string // optional MBTiles archive served at /basemap
	CacheControl    string // Cache-Control for basemap tiles
	GeoIPPath       string // optional GeoIP2/GeoLite2 City database for /api/locate
	SearchDelay     time.Duration
	AllowAllOrigins bool
	Live            *LiveBasemap // optional on-demand tiles served at /live
}

// Server is the HTTP front of a Session.
type Server struct {
	cfg        Config
	session    *Session
	hub        *Hub
	basemap    *BasemapHandler
	locator    *locate.Locator
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the router. The hub must be the one the session broadcasts to.
func New(cfg Config, session *Session, hub *Hub, logger *slog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	s := &Server{cfg: cfg, session: session, hub: hub, logger: logger}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	if cfg.BasemapPath != "" {
		bm, err := NewBasemapHandler(cfg.BasemapPath, cfg.CacheControl, logger)
		if err != nil {
			return nil, err
		}
		s.basemap = bm
	}
	if cfg.GeoIPPath != "" {
		l, err := locate.Open(cfg.GeoIPPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.locator = l
	}

	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAllOrigins {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/provinces", s.handleProvinces)
		r.Get("/regencies", s.handleRegencies)
		r.Get("/regencies/{name}", s.handleRegencyDetail)
		r.Get("/search", s.handleSearch)
		r.Get("/locate", s.handleLocate)

		r.Post("/select/province", s.named(false, s.session.SelectProvince))
		r.Post("/select/regency", s.named(false, s.session.SelectRegency))
		r.Post("/select/search", s.named(false, s.session.SelectSearchResult))
		r.Post("/hover", s.named(true, s.session.Hover))
		r.Post("/clear-regency", s.plain(s.session.ClearRegency))
		r.Post("/reset", s.plain(s.session.Reset))
	})

	r.Get("/ws", s.handleWebSocket)

	if s.basemap != nil {
		r.Route("/basemap", s.basemap.Routes)
	}
	if s.cfg.Live != nil {
		r.Route("/live", s.cfg.Live.Routes)
	}

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return r
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log().Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("server listening", "addr", s.cfg.Addr, "basemap", s.cfg.BasemapPath != "", "live", s.cfg.Live != nil, "static", s.cfg.StaticDir)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log().Info("shutting down server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// Close releases the basemap archive and GeoIP database.
func (s *Server) Close() error {
	var errs []error
	if s.basemap != nil {
		errs = append(errs, s.basemap.Close())
	}
	if s.locator != nil {
		errs = append(errs, s.locator.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
