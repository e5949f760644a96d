// Package inspect serves a read-only HTTP view of a storage directory: the
// local area, the key-value database, a live stream of storage events and
// Prometheus metrics.
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/persist/pkg/kvdb"
	"github.com/vango-dev/persist/pkg/webstorage"
)

// Config configures the inspector.
type Config struct {
	// Window provides the local area and the storage events. Required.
	Window webstorage.Window

	// DB is the database served under /api/db. Optional.
	DB *kvdb.Store

	// Gatherer is served under /metrics.
	// Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Logger is the logger for request failures.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is the inspector HTTP handler.
type Server struct {
	window webstorage.Window
	db     *kvdb.Store
	logger *slog.Logger

	hub    *Hub
	router chi.Router
	remove func()
}

// Entry is one stored item.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// New creates the inspector and subscribes it to the window's storage
// events. Close releases the subscription.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	logger := cfg.Logger.With("component", "inspect")

	s := &Server{
		window: cfg.Window,
		db:     cfg.DB,
		logger: logger,
		hub:    NewHub(logger),
	}
	s.remove = s.window.AddStorageListener(s.hub.Publish)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/local", s.listLocal)
		r.Get("/local/{key}", s.getLocal)
		r.Get("/db", s.listDB)
		r.Get("/db/{key}", s.getDB)
	})
	r.Get("/events", s.hub.HandleWebSocket)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close unsubscribes from storage events and disconnects all clients.
func (s *Server) Close() {
	s.remove()
	s.hub.Close()
}

func (s *Server) listLocal(w http.ResponseWriter, _ *http.Request) {
	area := s.window.LocalStorage()
	if area == nil {
		http.Error(w, "local storage unavailable", http.StatusServiceUnavailable)
		return
	}

	entries := []Entry{}
	for _, key := range area.Keys() {
		if raw, ok := area.GetItem(key); ok {
			entries = append(entries, Entry{Key: key, Value: decoded([]byte(raw))})
		}
	}
	s.writeJSON(w, entries)
}

func (s *Server) getLocal(w http.ResponseWriter, r *http.Request) {
	area := s.window.LocalStorage()
	if area == nil {
		http.Error(w, "local storage unavailable", http.StatusServiceUnavailable)
		return
	}

	key := chi.URLParam(r, "key")
	raw, ok := area.GetItem(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, Entry{Key: key, Value: decoded([]byte(raw))})
}

func (s *Server) listDB(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	keys, _, err := s.db.Keys(ctx).Wait(ctx)
	if err != nil {
		s.fail(w, "listing database keys", err)
		return
	}

	// Reads are queued together and complete in order.
	results := make([]*kvdb.Result[[]byte], len(keys))
	for i, key := range keys {
		results[i] = s.db.Get(ctx, key)
	}

	entries := []Entry{}
	for i, key := range keys {
		raw, ok, err := results[i].Wait(ctx)
		if err != nil {
			s.fail(w, "reading database", err)
			return
		}
		if ok {
			entries = append(entries, Entry{Key: key, Value: decoded(raw)})
		}
	}
	s.writeJSON(w, entries)
}

func (s *Server) getDB(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	key := chi.URLParam(r, "key")
	raw, ok, err := s.db.Get(ctx, key).Wait(ctx)
	if err != nil {
		s.fail(w, "reading database", err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, Entry{Key: key, Value: decoded(raw)})
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response", "error", err)
	}
}

// decoded returns raw as JSON when it parses, or as a string otherwise.
func decoded(raw []byte) any {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}
