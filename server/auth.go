package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	oidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier checks a caller's bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) error
}

// IDTokenVerifier verifies OIDC ID tokens via the issuer's discovery document.
type IDTokenVerifier struct {
	v *oidc.IDTokenVerifier
}

// Verify implements TokenVerifier.
func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) error {
	_, err := v.v.Verify(ctx, raw)
	return err
}

// JWKSVerifier verifies JWT access tokens against a JWKS, issuer and audience.
type JWKSVerifier struct {
	Keyfunc  jwt.Keyfunc
	Issuer   string
	Audience string
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(_ context.Context, raw string) error {
	tok, err := jwt.Parse(raw, v.Keyfunc, jwt.WithAudience(v.Audience), jwt.WithIssuer(v.Issuer))
	if err != nil {
		return err
	}
	if !tok.Valid {
		return errors.New("token is not valid")
	}
	return nil
}

// NewVerifier discovers the issuer and returns the verifier for cfg.TokenType.
// "id" verifies ID tokens; anything else verifies JWT access tokens through
// the issuer's jwks_uri.
func NewVerifier(ctx context.Context, cfg AuthConfig) (TokenVerifier, error) {
	prov, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	if cfg.TokenType == "id" {
		return &IDTokenVerifier{v: prov.Verifier(&oidc.Config{ClientID: cfg.Audience})}, nil
	}

	var disc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := prov.Claims(&disc); err != nil {
		return nil, fmt.Errorf("discover jwks_uri: %w", err)
	}
	if disc.JWKSURI == "" {
		return nil, errors.New("discover jwks_uri: issuer does not publish one")
	}
	jwks, err := keyfunc.Get(disc.JWKSURI, keyfunc.Options{
		Ctx:             ctx,
		RefreshInterval: time.Hour,
		RefreshTimeout:  10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return &JWKSVerifier{Keyfunc: jwks.Keyfunc, Issuer: cfg.Issuer, Audience: cfg.Audience}, nil
}

// auth rejects requests without a valid bearer token. A nil verifier disables it.
func (s *Server) auth(next http.Handler) http.Handler {
	if s.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer")
			return
		}
		raw := strings.TrimSpace(h[len("Bearer "):])
		if err := s.verifier.Verify(r.Context(), raw); err != nil {
			s.log.Warn("caller_token_rejected", map[string]any{"path": r.URL.Path, "err": err})
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cors echoes allowed origins. An empty allow list allows every origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
