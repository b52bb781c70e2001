package azproxy

import (
	"context"
	"net/http"
)

// Credential represents an authentication method for Azure OpenAI.
// Implementations must apply the appropriate authentication headers to HTTP requests.
type Credential interface{ apply(h http.Header) }

// CredentialProvider yields the credential to attach to the next upstream request.
// Static credentials return themselves; the token cache may perform a token
// exchange before returning.
type CredentialProvider interface {
	Credential(ctx context.Context) (Credential, error)
}

// APIKey implements Credential using Azure OpenAI API key authentication.
type APIKey string

// apply adds the API key to the request headers using the "api-key" header.
func (k APIKey) apply(h http.Header) {
	if k != "" {
		h.Set("api-key", string(k))
	}
}

// Credential implements CredentialProvider.
func (k APIKey) Credential(context.Context) (Credential, error) { return k, nil }

// Bearer implements Credential using OAuth2 Bearer token authentication.
// Use this when authenticating with Azure AD tokens or other Bearer tokens.
type Bearer string

// apply adds the Bearer token to the Authorization header.
func (b Bearer) apply(h http.Header) {
	if b != "" {
		h.Set("Authorization", "Bearer "+string(b))
	}
}

// Credential implements CredentialProvider.
func (b Bearer) Credential(context.Context) (Credential, error) { return b, nil }

// ApplyCredential writes the credential's headers into h.
func ApplyCredential(c Credential, h http.Header) {
	if c != nil {
		c.apply(h)
	}
}

// Mode selects which provider surface the proxy talks to.
type Mode int

const (
	// ModeAzure targets an Azure OpenAI resource addressed by deployment.
	ModeAzure Mode = iota
	// ModeDirect targets the provider's public API addressed by model name.
	ModeDirect
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "azure"
}

// AuthMode is the active authentication variant. Exactly one is active per process.
type AuthMode int

const (
	// AuthClientCredential exchanges tenant/client/secret for bearer tokens.
	AuthClientCredential AuthMode = iota
	// AuthStaticAPIKey sends a fixed "api-key" header.
	AuthStaticAPIKey
	// AuthStaticBearer sends a fixed pre-issued bearer token.
	AuthStaticBearer
)

func (m AuthMode) String() string {
	switch m {
	case AuthClientCredential:
		return "client_credential"
	case AuthStaticAPIKey:
		return "api_key"
	case AuthStaticBearer:
		return "bearer"
	default:
		return "unknown"
	}
}

// ClientCredentials identifies an Entra ID application.
type ClientCredentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
	// AuthorityHost is the identity provider base, e.g. https://login.microsoftonline.com
	AuthorityHost string
}

// TokenURL is the OAuth2 v2.0 token endpoint for the tenant.
func (c ClientCredentials) TokenURL() string {
	return trimSlashes(c.AuthorityHost) + "/" + c.TenantID + "/oauth2/v2.0/token"
}

// CredentialConfig holds the resolved authentication settings.
type CredentialConfig struct {
	Mode   AuthMode
	Client ClientCredentials // AuthClientCredential
	APIKey string            // AuthStaticAPIKey
	Token  string            // AuthStaticBearer
	// Provider selects the token exchange implementation: "oauth2" (default) or "azidentity".
	Provider string
}
