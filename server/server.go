// Package server exposes an azproxy.Proxy over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/enesunal-m/azproxy"
	"github.com/enesunal-m/azproxy/webrtc"
)

// AuthConfig enables caller authentication when Issuer is set.
type AuthConfig struct {
	Issuer    string
	Audience  string
	TokenType string // "id" or "access"
}

// Config holds the HTTP surface settings.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Auth           AuthConfig
}

// Server configuration keys.
var (
	KeyAddr           = azproxy.Candidates{"ADDR"}
	KeyAllowedOrigins = azproxy.Candidates{"CORS_ALLOWED_ORIGINS"}
	KeyOIDCIssuer     = azproxy.Candidates{"OIDC_ISSUER"}
	KeyOIDCAudience   = azproxy.Candidates{"OIDC_AUDIENCE"}
	KeyOIDCTokenType  = azproxy.Candidates{"OIDC_TOKEN_TYPE"}
)

// ConfigFromSource reads the server settings. OIDC_AUDIENCE is required when
// OIDC_ISSUER is set.
func ConfigFromSource(src azproxy.Source) (Config, error) {
	cfg := Config{Addr: ":8080"}
	if v, _, ok := KeyAddr.Resolve(src); ok {
		cfg.Addr = v
	}
	if v, _, ok := KeyAllowedOrigins.Resolve(src); ok {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if iss, _, ok := KeyOIDCIssuer.Resolve(src); ok {
		aud, _, ok := KeyOIDCAudience.Resolve(src)
		if !ok {
			return Config{}, azproxy.NewConfigError(KeyOIDCAudience[0], "", "is required when OIDC_ISSUER is set")
		}
		typ, _, ok := KeyOIDCTokenType.Resolve(src)
		if !ok {
			typ = "access"
		}
		if typ != "id" && typ != "access" {
			return Config{}, azproxy.NewConfigError(KeyOIDCTokenType[0], typ, `must be "id" or "access"`)
		}
		cfg.Auth = AuthConfig{Issuer: iss, Audience: aud, TokenType: typ}
	}
	return cfg, nil
}

// Server routes client requests to the proxy.
type Server struct {
	proxy     *azproxy.Proxy
	cfg       Config
	verifier  TokenVerifier
	exchanger *webrtc.Exchanger
	log       *azproxy.Logger
	router    chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithVerifier enables caller authentication.
func WithVerifier(v TokenVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithExchanger replaces the regional SDP exchanger.
func WithExchanger(x *webrtc.Exchanger) Option {
	return func(s *Server) { s.exchanger = x }
}

// New creates a server around p.
func New(p *azproxy.Proxy, cfg Config, opts ...Option) *Server {
	s := &Server{
		proxy:     p,
		cfg:       cfg,
		exchanger: &webrtc.Exchanger{},
		log:       p.Logger().Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/session", s.handleSession)
		r.Post("/responses", s.handleResponses)
		r.Get("/realtime", s.handleRealtime)
		r.Post("/realtime/webrtc", s.handleWebRTC)
		r.Get("/realtime/config", s.handleConfig)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", map[string]any{"addr": s.cfg.Addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("shutting_down", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
