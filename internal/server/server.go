// Package server exposes the public content collections over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	Logger *zap.Logger
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

// Server serves /api/{collection} from long-lived bindings.
type Server struct {
	logger      *zap.Logger
	opts        Options
	collections map[string]publicCollection
	router      chi.Router
}

// New binds the public collections on store and builds the router.
func New(ctx context.Context, store docstore.Store, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collections, err := openCollections(ctx, store, live.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s := &Server{logger: logger, opts: opts, collections: collections}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(countRequests)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	if s.opts.RateLimit > 0 {
		r.Use(newLimiterPool(s.opts.RateLimit, s.opts.RateBurst).middleware)
	}

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.health)
	r.Get("/api/{collection}", s.list)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases every binding.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.collections {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type collectionHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status      string                      `json:"status"`
	Collections map[string]collectionHealth `json:"collections"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Collections: map[string]collectionHealth{}}
	for _, name := range s.collectionNames() {
		c := s.collections[name]
		h := collectionHealth{Status: c.Status().String()}
		if err := c.Err(); err != nil {
			h.Error = err.Error()
		}
		if c.Status() != live.StatusReady {
			resp.Status = "degraded"
		}
		resp.Collections[name] = h
	}
	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	c, ok := s.collections[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection "+name)
		return
	}
	switch c.Status() {
	case live.StatusLoading:
		writeError(w, http.StatusServiceUnavailable, name+" is loading")
		return
	case live.StatusErrored:
		s.logger.Warn("serving errored collection", zap.String("collection", name), zap.Error(c.Err()))
		writeError(w, http.StatusServiceUnavailable, name+" is unavailable")
		return
	}

	items, err := c.Items(r.URL.Query())
	if err != nil {
		var bad *badFilterError
		if errors.As(err, &bad) {
			writeError(w, http.StatusBadRequest, bad.Error())
			return
		}
		s.logger.Error("encode collection", zap.String("collection", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": name, "items": items})
}

func (s *Server) collectionNames() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
