// Package server exposes collections over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/negroni"

	"github.com/siegeai/schemaparser/collection"
	"github.com/siegeai/schemaparser/infer"
)

// DefaultMaxBodyBytes bounds a single ingestion request.
const DefaultMaxBodyBytes = 64 << 20

type Server struct {
	router       *mux.Router
	registry     *collection.Registry
	decoder      *infer.JSONDecoder
	maxBodyBytes int64
}

type Option func(*Server)

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithDecoder replaces the JSON decoder, for example to turn Extended JSON
// off.
func WithDecoder(d *infer.JSONDecoder) Option {
	return func(s *Server) {
		s.decoder = d
	}
}

func New(registry *collection.Registry, opts ...Option) *Server {
	s := &Server{
		router:       mux.NewRouter().StrictSlash(true),
		registry:     registry,
		decoder:      infer.NewJSONDecoder(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth()).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/collections", s.handleCreateCollection()).Methods("POST")
	s.router.HandleFunc("/collections", s.handleListCollections()).Methods("GET")
	s.router.HandleFunc("/collections/{name}", s.handleDeleteCollection()).Methods("DELETE")
	s.router.HandleFunc("/collections/{name}/documents", s.handleObserve()).Methods("POST")
	s.router.HandleFunc("/collections/{name}/schema", s.handleSchema()).Methods("GET")
	s.router.HandleFunc("/collections/{name}/openapi", s.handleOpenAPI()).Methods("GET")
	s.router.Use(logMiddleware)
}

// Handler is the router wrapped in panic recovery.
func (s *Server) Handler() http.Handler {
	rec := negroni.NewRecovery()
	rec.PrintStack = false
	rec.Logger = slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)

	n := negroni.New(rec)
	n.UseHandler(s.router)
	return n
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := negroni.NewResponseWriter(w)
		next.ServeHTTP(ww, r)
		slog.Debug("handled request",
			"method", r.Method,
			"uri", r.RequestURI,
			"status", ww.Status(),
			"size", ww.Size(),
			"duration", time.Since(start))
	})
}
