// Package web serves the reflected tables as a read-only JSON API, plus an
// optional HTML browser and an API-key protected admin surface.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/tabload/internal/config"
	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/metrics"
	"github.com/JonMunkholm/tabload/internal/web/middleware"
)

// Service is the part of core.Service the server needs.
type Service interface {
	Catalog() *core.Catalog
	Writer() *core.WriterLock
	Ping(ctx context.Context) error

	ListRows(ctx context.Context, table string, q core.RowsQuery) (*core.RowsPage, error)
	GetRow(ctx context.Context, table, id string) (core.TableRow, error)

	GetTables(ctx context.Context) ([]string, error)
	RefreshTables(ctx context.Context) error
	IndexTable(ctx context.Context, table string, caseInsensitive bool) ([]string, error)
	DropTable(ctx context.Context, table string) error
	LoadTable(ctx context.Context, path string, opts core.LoadOptions) (*core.LoadResult, error)
}

// Server is the HTTP server for the table API.
type Server struct {
	service  Service
	cfg      *config.Config
	gatherer prometheus.Gatherer
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer creates a Server. gatherer backs /metrics; pass nil to disable
// the endpoint regardless of configuration.
func NewServer(service Service, cfg *config.Config, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		gatherer: gatherer,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.gatherer != nil && s.cfg.Metrics.Enabled {
		s.router.Use(middleware.Metrics)
	}
}

// setupRoutes configures all HTTP routes. Static segments win over
// {table}, so tables named like a reserved path are only reachable
// through /browse.
func (s *Server) setupRoutes() {
	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/healthz", s.handleHealth)

	if s.gatherer != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, metrics.Handler(s.gatherer))
	}

	if s.cfg.API.Admin {
		s.router.Route("/admin", func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(&s.cfg.Security))
			if s.cfg.Rate.Enabled {
				r.Use(s.newRateLimiter(s.cfg.Rate.AdminLimit, time.Minute).middleware)
			}

			r.Get("/tables", s.handleAdminTables)
			r.Get("/status", s.handleWriterStatus)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/tables/{table}/index", s.handleIndexTable)
			r.Post("/tables/{table}/load", s.handleLoadTable)
			r.Delete("/tables/{table}", s.handleDropTable)
		})
	}

	s.router.Group(func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
		}
		if s.cfg.Rate.Enabled {
			r.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
		}

		if s.cfg.API.Browser {
			r.Get("/browse", s.handleBrowseIndex)
			r.Get("/browse/", s.handleBrowseIndex)
			r.Get("/browse/{table}", s.handleBrowseTable)
		}

		r.Get("/", s.handleIndex)
		r.Get("/{table}", s.handleListRows)
		r.Get("/{table}/meta", s.handleTableMeta)
		r.Get("/{table}/{id}", s.handleGetRow)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	l := newRateLimiter(rate, window)
	s.limiters = append(s.limiters, l)
	return l
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// The browser pages carry inline styles and nothing else.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
