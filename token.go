package azproxy

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRefreshMargin is how long before expiry a cached token stops being served.
	DefaultRefreshMargin = 60 * time.Second

	// DefaultTokenLifetime is assumed when the identity provider reports no expiry.
	DefaultTokenLifetime = 5 * time.Minute
)

// AccessToken is a bearer token with its absolute expiry.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenFetcher performs one token exchange with the identity provider.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (AccessToken, error)
}

// TokenCache hands out a bearer token, exchanging credentials only when the
// cached token is absent or within the refresh margin of its expiry.
//
// Reads are lock-free. A refresh replaces the cached token wholesale, and
// concurrent callers that find the cache stale share a single exchange.
type TokenCache struct {
	fetcher TokenFetcher
	margin  time.Duration
	now     func() time.Time
	log     *Logger

	current atomic.Pointer[AccessToken]
	group   singleflight.Group
}

// TokenCacheOption configures a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.margin = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

// WithTokenLogger sets the logger used for refresh events.
func WithTokenLogger(l *Logger) TokenCacheOption {
	return func(c *TokenCache) { c.log = l }
}

// NewTokenCache creates an empty cache around fetcher.
func NewTokenCache(fetcher TokenFetcher, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		fetcher: fetcher,
		margin:  DefaultRefreshMargin,
		now:     time.Now,
		log:     NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a bearer token that is valid for longer than the refresh margin.
// Errors are *AuthError values; a failed refresh leaves the cache untouched.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok := c.fresh(); tok != nil {
		return tok.Value, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		// another caller may have refreshed while we were waiting to enter
		if tok := c.fresh(); tok != nil {
			return tok, nil
		}
		tok, err := c.fetcher.FetchToken(ctx)
		if err != nil {
			c.log.Error("token_refresh_failed", map[string]any{"err": err})
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				err = NewAuthError(0, "", err)
			}
			return nil, err
		}
		if tok.Value == "" {
			err := NewAuthError(0, "", errors.New("identity provider returned an empty access token"))
			c.log.Error("token_refresh_failed", map[string]any{"err": err})
			return nil, err
		}
		c.current.Store(&tok)
		c.log.Debug("token_refreshed", map[string]any{"expires_at": tok.ExpiresAt.UTC().Format(time.RFC3339)})
		return &tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(*AccessToken).Value, nil
}

// Credential implements CredentialProvider.
func (c *TokenCache) Credential(ctx context.Context) (Credential, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	return Bearer(tok), nil
}

// Reset drops the cached token.
func (c *TokenCache) Reset() {
	c.current.Store(nil)
}

func (c *TokenCache) fresh() *AccessToken {
	tok := c.current.Load()
	if tok == nil || tok.ExpiresAt.Sub(c.now()) <= c.margin {
		return nil
	}
	return tok
}

// OAuth2Fetcher exchanges client credentials at the tenant's v2.0 token endpoint.
type OAuth2Fetcher struct {
	cfg    clientcredentials.Config
	client *http.Client
	now    func() time.Time
}

// NewOAuth2Fetcher creates a fetcher for creds. A nil client uses http.DefaultClient.
func NewOAuth2Fetcher(creds ClientCredentials, client *http.Client) *OAuth2Fetcher {
	return &OAuth2Fetcher{
		cfg: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     creds.TokenURL(),
			Scopes:       []string{creds.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
		now:    time.Now,
	}
}

// FetchToken implements TokenFetcher.
func (f *OAuth2Fetcher) FetchToken(ctx context.Context) (AccessToken, error) {
	if f.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	}
	tok, err := f.cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return AccessToken{}, NewAuthError(status, strings.TrimSpace(string(re.Body)), err)
		}
		return AccessToken{}, NewAuthError(0, "", err)
	}
	return AccessToken{
		Value:     tok.AccessToken,
		ExpiresAt: tokenExpiry(tok.Extra("expires_on"), tok.Expiry, f.now()),
	}, nil
}

// tokenExpiry picks the absolute expires_on value when present, then the
// expiry derived from expires_in, then a short default lifetime.
func tokenExpiry(expiresOn any, fromExpiresIn time.Time, now time.Time) time.Time {
	var secs float64
	switch v := expiresOn.(type) {
	case float64:
		secs = v
	case int64:
		secs = float64(v)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			secs = n
		}
	}
	if secs > 0 {
		return time.Unix(int64(secs), 0)
	}
	if !fromExpiresIn.IsZero() {
		return fromExpiresIn
	}
	return now.Add(DefaultTokenLifetime)
}

// AzureIdentityFetcher obtains tokens through azidentity's ClientSecretCredential.
type AzureIdentityFetcher struct {
	cred  azcore.TokenCredential
	scope string
}

// NewAzureIdentityFetcher creates a fetcher for creds. A nil client uses the SDK default transport.
func NewAzureIdentityFetcher(creds ClientCredentials, client *http.Client) (*AzureIdentityFetcher, error) {
	opts := &azidentity.ClientSecretCredentialOptions{}
	opts.Cloud = cloud.Configuration{ActiveDirectoryAuthorityHost: trimSlashes(creds.AuthorityHost) + "/"}
	if client != nil {
		opts.Transport = client
	}
	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, opts)
	if err != nil {
		return nil, NewConfigError(KeyTenantID[0], creds.TenantID, err.Error())
	}
	return &AzureIdentityFetcher{cred: cred, scope: creds.Scope}, nil
}

// FetchToken implements TokenFetcher.
func (f *AzureIdentityFetcher) FetchToken(ctx context.Context) (AccessToken, error) {
	tok, err := f.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{f.scope}})
	if err != nil {
		var afe *azidentity.AuthenticationFailedError
		if errors.As(err, &afe) && afe.RawResponse != nil {
			return AccessToken{}, NewAuthError(afe.RawResponse.StatusCode, "", err)
		}
		return AccessToken{}, NewAuthError(0, "", err)
	}
	return AccessToken{Value: tok.Token, ExpiresAt: tok.ExpiresOn}, nil
}

// NewCredentialProvider builds the provider for the active authentication mode.
func NewCredentialProvider(cfg CredentialConfig, client *http.Client, log *Logger) (CredentialProvider, error) {
	switch cfg.Mode {
	case AuthStaticAPIKey:
		if cfg.APIKey == "" {
			return nil, NewConfigError(KeyAPIKey[0], "", "cannot be empty")
		}
		return APIKey(cfg.APIKey), nil
	case AuthStaticBearer:
		if cfg.Token == "" {
			return nil, NewConfigError(KeyStaticToken[0], "", "cannot be empty")
		}
		return Bearer(cfg.Token), nil
	case AuthClientCredential:
		var fetcher TokenFetcher
		if cfg.Provider == "azidentity" {
			f, err := NewAzureIdentityFetcher(cfg.Client, client)
			if err != nil {
				return nil, err
			}
			fetcher = f
		} else {
			fetcher = NewOAuth2Fetcher(cfg.Client, client)
		}
		if log == nil {
			log = NopLogger()
		}
		return NewTokenCache(fetcher, WithTokenLogger(log.Named("token"))), nil
	default:
		return nil, NewConfigError("AuthMode", cfg.Mode.String(), "unsupported authentication mode")
	}
}
