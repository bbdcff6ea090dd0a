package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/modernwms/wmsauth"
	"github.com/modernwms/wmsauth/middleware"
	"github.com/modernwms/wmsauth/permission"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Options configures [New]. Engine is required.
type Options struct {
	Engine *wmsauth.Engine
	Logger *zap.Logger

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler

	AllowedOrigins    []string
	TrustProxy        bool
	RequestsPerMinute int
	RequestBurst      int
	LimiterKeys       int
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine *wmsauth.Engine
	logger *zap.Logger
	router *mux.Router
	root   http.Handler
}

// New builds the router with CORS, client IP extraction, per-IP request
// limiting, access logging and panic recovery.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine: opts.Engine,
		logger: logger,
		router: mux.NewRouter(),
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	guard := middleware.GuardWith(opts.Engine, wmsauth.ModeStrict, writeGuardError, permission.ScopeUser)

	// Kept on the root router; a sub-router answers a wrong method with 404.
	s.router.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/api/refresh-token", s.handleRefresh).Methods(http.MethodPost)
	s.router.Handle("/api/logout", guard(http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)
	s.router.Handle("/api/me", guard(http.HandlerFunc(s.handleMe))).Methods(http.MethodGet)
	s.router.Handle("/api/change-password", guard(http.HandlerFunc(s.handleChangePassword))).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	limiter := newIPLimiter(opts.RequestsPerMinute, opts.RequestBurst, opts.LimiterKeys)
	s.router.Use(s.recoverPanics, s.logRequests, limiter.middleware)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"WWW-Authenticate", "Retry-After"},
	})
	s.root = c.Handler(withClientIP(opts.TrustProxy)(s.router))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.root.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", wmsauth.ClientIPFromContext(r.Context())),
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("http handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", v),
				)
				writeFailure(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeGuardError renders guard rejections in the envelope. The guard has
// already set WWW-Authenticate for 401.
func writeGuardError(w http.ResponseWriter, _ *http.Request, status int, _ error) {
	switch status {
	case http.StatusForbidden:
		writeFailure(w, status, msgForbidden)
	case http.StatusUnauthorized:
		writeFailure(w, status, msgUnauthenticated)
	default:
		writeFailure(w, status, msgUnavailable)
	}
}
