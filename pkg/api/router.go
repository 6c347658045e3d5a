// Package api exposes one store collection over HTTP.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ruslano69/eavsql/pkg/store"
)

// Server - HTTP обработчики коллекции
// Store не рассчитан на параллельные вызовы, поэтому запросы к нему идут по очереди
type Server struct {
	store    *store.Store
	logger   zerolog.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration

	mu sync.Mutex
}

// Option настраивает Server
type Option func(*Server)

// WithLogger задает логгер запросов
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics публикует /metrics из реестра
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithTimeout задает таймаут запроса (по умолчанию 30 секунд)
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New создает Server
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{store: st, logger: zerolog.Nop(), timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router возвращает chi router со всеми маршрутами
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/objects", s.handleQuery)
		r.Post("/objects", s.handleCreate)
		r.Get("/objects/{id}", s.handleGet)
		r.Put("/objects/{id}", s.handlePut)
		r.Patch("/objects/{id}", s.handlePatch)
		r.Delete("/objects/{id}", s.handleDelete)
		r.Get("/keys", s.handleKeys)
		r.Get("/count", s.handleCount)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz проверяет соединение с БД, переоткрывая его при необходимости
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.store.Conn().Recreate(r.Context(), false)
	s.mu.Unlock()

	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
