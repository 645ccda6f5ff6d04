package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gobotvac/internal/core"
)

const requestIDHeader = "X-Request-Id"

// HTTPServer serves health, metrics, dashboards, and plugin routes.
type HTTPServer struct {
	Server *http.Server
}

func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{Server: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *HTTPServer) ListenAndServe() error {
	return s.Server.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// NewRouter mounts the core endpoints and every plugin that registers HTTP
// routes.
func NewRouter(plugins []core.Plugin, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", HealthHandler(plugins))
	r.Handle("/metrics", MetricsHandler(registry))
	mountDashboards(r, core.DashboardsMap(plugins))

	for _, plugin := range plugins {
		if registrant, ok := plugin.(core.HTTPRegistrant); ok {
			registrant.RegisterHTTP(r)
		}
	}
	return r
}

// requestLogger tags each request with an id and logs non-2xx responses.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if ww.Status() >= 300 {
			log.Printf("http %s %s %d %s request_id=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond), id)
		}
	})
}
