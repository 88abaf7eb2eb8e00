package internal

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ultrona/mantlog/internal/config"
	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/internal/web"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/clog"
)

type Server struct {
	mu           sync.Mutex
	server       *http.Server
	env          *config.Env
	recordServer *record.Server
	webHandler   *web.Handler
	checker      grpchealth.Checker
}

func NewServer(env *config.Env, recordServer *record.Server, webHandler *web.Handler, checker grpchealth.Checker) *Server {
	return &Server{
		env:          env,
		recordServer: recordServer,
		webHandler:   webHandler,
		checker:      checker,
	}
}

// Handler builds the full route tree: the entry form and downloads at the
// root, the JSON API under /api and the health and metrics endpoints.
func (s *Server) Handler() http.Handler {
	api := chi.NewRouter()
	api.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			s.apiKeyMiddleware(false),
			cerr.NewJSONResponseChiMiddleware(),
		)
		s.recordServer.Routes(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	pages := chi.NewRouter()
	pages.Use(
		clog.SlogChiMiddleware(),
		s.apiKeyMiddleware(true),
	)
	s.webHandler.Routes(pages)

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", api)
	mux.Handle(grpchealth.NewHandler(
		s.checker,
		connect.WithInterceptors(s.interceptors()...),
	))
	mux.Handle("/", pages)

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(mux), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of
// every request.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	hs := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.server = hs
	s.mu.Unlock()
	if ctx.Err() != nil {
		return http.ErrServerClosed
	}
	return hs.ListenAndServe()
}

// Shutdown stops a started server. It is a no-op before ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.server
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectUnaryInterceptor(),
		cerr.NewConvertConnectErrorInterceptor(),
	}
}

// requestAPIKey reads the key from X-API-Key, a Bearer token or the password
// of HTTP Basic credentials, in that order.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	if _, password, ok := r.BasicAuth(); ok {
		return password
	}
	return ""
}

// apiKeyMiddleware is a no-op unless an API key is configured. With
// challenge set, a rejected request asks the browser for Basic credentials
// so the operator page stays usable.
func (s *Server) apiKeyMiddleware(challenge bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.env.APIKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(requestAPIKey(r)), []byte(s.env.APIKey)) != 1 {
				if challenge {
					w.Header().Set("WWW-Authenticate", `Basic realm="mantlog", charset="UTF-8"`)
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
