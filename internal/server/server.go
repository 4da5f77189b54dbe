package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures the router middleware stack.
type Options struct {
	Port           int
	Logger         *slog.Logger
	RequestTimeout time.Duration
	ServiceName    string // otelhttp operation name; empty disables instrumentation
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoverMiddleware(logger))

	if opts.RequestTimeout > 0 {
		r.Use(TimeoutMiddleware(opts.RequestTimeout))
	}

	// Wrap with OpenTelemetry HTTP instrumentation
	if opts.ServiceName != "" {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, opts.ServiceName)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "error": "method not allowed"})
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}
