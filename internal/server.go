package internal

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"boffo/internal/boffo"
	"boffo/internal/config"
	"boffo/internal/handlers"
)

// Server is the HTTP host for Boffo operations.
type Server struct {
	Router  *chi.Mux
	Service *boffo.Service
	Metrics *Metrics
}

// NewServer mounts every route. metrics may be nil; /metrics is served only
// when cfg.EnableMetrics is set.
func NewServer(svc *boffo.Service, cfg *config.Config, metrics *Metrics) *Server {
	s := &Server{
		Router:  chi.NewRouter(),
		Service: svc,
		Metrics: metrics,
	}
	withMetrics := cfg.EnableMetrics && metrics != nil

	// chi requires middleware before routes.
	s.Router.Use(RequestID)
	s.Router.Use(RequestLogger)
	if withMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	if withMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.mountRoutes(s.Router)
	return s
}

func (s *Server) mountRoutes(r chi.Router) {
	lookups := handlers.NewLookupHandler(s.Service)
	sessions := handlers.NewSessionHandler(s.Service)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessions.State)
		r.Post("/", sessions.Login)
		r.Delete("/", sessions.Logout)
	})

	r.Get("/fields", sessions.ListFields)
	r.Put("/fields", sessions.UpdateFields)

	r.Get("/locations", lookups.ListLocations)
	r.Post("/lookup/barcodes", lookups.LookupBarcodes)
	r.Post("/lookup/range", lookups.LookupRange)

	r.Post("/commands/{name}", lookups.Dispatch)
}

// Handler wraps the router with OpenTelemetry server spans.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router, "boffo")
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
