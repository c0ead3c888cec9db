package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jitaccess/pkg/httputil"
	"github.com/platinummonkey/jitaccess/pkg/middleware"
	"github.com/platinummonkey/jitaccess/pkg/observability"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes = 1 << 20

// Server represents our API server
type Server struct {
	router      *mux.Router
	permissions *PermissionHandlers
	requests    *RequestHandlers
}

// Options tune the HTTP surface
type Options struct {
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	MaxBodyBytes int64
	// RateLimiter throttles clients when set
	RateLimiter middleware.Limiter
}

// NewServer creates a new API server
func NewServer(permissions PermissionService, requests RequestService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router:      mux.NewRouter(),
		permissions: NewPermissionHandlers(permissions),
		requests:    NewRequestHandlers(requests),
	}

	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware(opts.Logger),
		observability.HTTPMetricsMiddleware(opts.Metrics),
	)
	if opts.RateLimiter != nil {
		s.router.Use(middleware.RateLimit(opts.RateLimiter, opts.Logger))
	}
	s.router.Use(
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	s.permissions.RegisterRoutes(s.router)
	s.requests.RegisterRoutes(s.router)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router for additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}
