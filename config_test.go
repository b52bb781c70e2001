package azproxy

import (
	"context"
	"net/http"
	"testing"
)

func TestAPIKey_apply(t *testing.T) {
	tests := []struct {
		name     string
		key      APIKey
		expected string
	}{
		{
			name:     "valid API key",
			key:      APIKey("test-key-123"),
			expected: "test-key-123",
		},
		{
			name:     "empty API key",
			key:      APIKey(""),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			tt.key.apply(h)

			if h.Get("api-key") != tt.expected {
				t.Errorf("expected api-key %q, got %q", tt.expected, h.Get("api-key"))
			}
			if h.Get("Authorization") != "" {
				t.Errorf("API key must not set Authorization, got %q", h.Get("Authorization"))
			}
		})
	}
}

func TestBearer_apply(t *testing.T) {
	tests := []struct {
		name     string
		token    Bearer
		expected string
	}{
		{
			name:     "valid bearer token",
			token:    Bearer("abc123"),
			expected: "Bearer abc123",
		},
		{
			name:     "empty bearer token",
			token:    Bearer(""),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			tt.token.apply(h)

			if h.Get("Authorization") != tt.expected {
				t.Errorf("expected Authorization %q, got %q", tt.expected, h.Get("Authorization"))
			}
		})
	}
}

func TestStaticCredentialProviders(t *testing.T) {
	ctx := context.Background()

	var p CredentialProvider = APIKey("k")
	c, err := p.Credential(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := http.Header{}
	ApplyCredential(c, h)
	if h.Get("api-key") != "k" {
		t.Errorf("expected api-key header, got %v", h)
	}

	p = Bearer("t")
	c, err = p.Credential(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h = http.Header{}
	ApplyCredential(c, h)
	if h.Get("Authorization") != "Bearer t" {
		t.Errorf("expected bearer header, got %v", h)
	}

	// nil credential is a no-op
	ApplyCredential(nil, h)
}

func TestClientCredentials_TokenURL(t *testing.T) {
	c := ClientCredentials{TenantID: "tenant-1", AuthorityHost: "https://login.microsoftonline.com/"}
	want := "https://login.microsoftonline.com/tenant-1/oauth2/v2.0/token"
	if got := c.TokenURL(); got != want {
		t.Errorf("TokenURL() = %q, want %q", got, want)
	}
}

func TestModeStrings(t *testing.T) {
	if ModeAzure.String() != "azure" || ModeDirect.String() != "direct" {
		t.Errorf("unexpected mode strings %q %q", ModeAzure, ModeDirect)
	}
	tests := map[AuthMode]string{
		AuthClientCredential: "client_credential",
		AuthStaticAPIKey:     "api_key",
		AuthStaticBearer:     "bearer",
		AuthMode(99):         "unknown",
	}
	for m, want := range tests {
		if m.String() != want {
			t.Errorf("AuthMode(%d).String() = %q, want %q", int(m), m.String(), want)
		}
	}
}

func TestNewCredentialProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CredentialConfig
		wantErr bool
		check   func(t *testing.T, p CredentialProvider)
	}{
		{
			name: "api key",
			cfg:  CredentialConfig{Mode: AuthStaticAPIKey, APIKey: "k"},
			check: func(t *testing.T, p CredentialProvider) {
				if _, ok := p.(APIKey); !ok {
					t.Errorf("expected APIKey, got %T", p)
				}
			},
		},
		{
			name: "static bearer",
			cfg:  CredentialConfig{Mode: AuthStaticBearer, Token: "t"},
			check: func(t *testing.T, p CredentialProvider) {
				if _, ok := p.(Bearer); !ok {
					t.Errorf("expected Bearer, got %T", p)
				}
			},
		},
		{
			name: "client credential",
			cfg: CredentialConfig{Mode: AuthClientCredential, Client: ClientCredentials{
				TenantID: "t", ClientID: "c", ClientSecret: "s", Scope: DefaultScope, AuthorityHost: DefaultAuthorityHost,
			}},
			check: func(t *testing.T, p CredentialProvider) {
				c, ok := p.(*TokenCache)
				if !ok {
					t.Fatalf("expected *TokenCache, got %T", p)
				}
				if _, ok := c.fetcher.(*OAuth2Fetcher); !ok {
					t.Errorf("expected OAuth2Fetcher, got %T", c.fetcher)
				}
			},
		},
		{name: "empty api key", cfg: CredentialConfig{Mode: AuthStaticAPIKey}, wantErr: true},
		{name: "empty bearer", cfg: CredentialConfig{Mode: AuthStaticBearer}, wantErr: true},
		{name: "unknown mode", cfg: CredentialConfig{Mode: AuthMode(42)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewCredentialProvider(tt.cfg, nil, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, p)
		})
	}
}
