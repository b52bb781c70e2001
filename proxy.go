package azproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxUpstreamBody bounds how much of a provider response is read into memory.
const maxUpstreamBody = 32 << 20

// Options configures a Proxy.
type Options struct {
	// HTTPClient is used for token exchange and provider calls.
	// If nil, http.DefaultClient is used. No timeout is imposed by the proxy itself.
	HTTPClient *http.Client

	// Logger receives operational events. If nil, nothing is logged.
	Logger *Logger

	// Credentials overrides the provider derived from the environment.
	Credentials CredentialProvider
}

// Proxy owns the per-process state (token cache, parsed deployment map) and
// performs the upstream calls on behalf of route handlers.
type Proxy struct {
	env         *Environment
	endpoints   *Endpoints
	deployments *Deployments
	shaper      *Shaper
	creds       CredentialProvider
	client      *http.Client
	log         *Logger
}

// New assembles a Proxy from a loaded environment.
func New(env *Environment, opts Options) (*Proxy, error) {
	if env == nil {
		return nil, NewConfigError("Environment", "", "cannot be nil")
	}
	if err := ValidateEnvironment(env); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = NopLogger()
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	creds := opts.Credentials
	if creds == nil {
		var err error
		creds, err = NewCredentialProvider(env.Credentials, client, log)
		if err != nil {
			return nil, err
		}
	}

	deployments := NewDeployments(env.Deployments, log)
	return &Proxy{
		env:         env,
		endpoints:   NewEndpoints(env),
		deployments: deployments,
		shaper:      NewShaper(env.Mode, deployments.Optional(CapabilityGuardrail)),
		creds:       creds,
		client:      client,
		log:         log,
	}, nil
}

// NewFromSource loads the environment from src and assembles a Proxy.
func NewFromSource(src Source, opts Options) (*Proxy, error) {
	env, err := LoadEnvironment(src)
	if err != nil {
		return nil, err
	}
	return New(env, opts)
}

// ValidateEnvironment checks the fields a Proxy cannot work without.
func ValidateEnvironment(env *Environment) error {
	if env.Endpoint == "" {
		return NewConfigError(KeyEndpoint[0], "", "cannot be empty")
	}
	if env.Mode == ModeAzure && env.APIVersion == "" {
		return NewConfigError(KeyAPIVersion[0], "", "cannot be empty")
	}
	return nil
}

// Environment returns the resolved provider environment.
func (p *Proxy) Environment() *Environment { return p.env }

// Endpoints returns the URL builder.
func (p *Proxy) Endpoints() *Endpoints { return p.endpoints }

// Deployments returns the deployment resolver.
func (p *Proxy) Deployments() *Deployments { return p.deployments }

// Shaper returns the request shaper.
func (p *Proxy) Shaper() *Shaper { return p.shaper }

// Logger returns the proxy's logger.
func (p *Proxy) Logger() *Logger { return p.log }

// Headers returns the authentication headers for the next upstream request.
func (p *Proxy) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	if err := p.authorize(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (p *Proxy) authorize(ctx context.Context, h http.Header) error {
	cred, err := p.creds.Credential(ctx)
	if err != nil {
		return err
	}
	ApplyCredential(cred, h)
	return nil
}

// postJSON sends body to target and returns the response body of a 2xx answer.
// Any other status becomes an *UpstreamError carrying the body text.
func (p *Proxy) postJSON(ctx context.Context, operation, target string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.authorize(ctx, req.Header); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error("upstream_request_failed", map[string]any{"operation": operation, "err": err})
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUpstreamBody {
		p.log.Error("upstream_body_too_large", map[string]any{"operation": operation, "limit": maxUpstreamBody})
		return nil, NewProtocolError(operation, fmt.Sprintf("a body within %d bytes", maxUpstreamBody))
	}
	if resp.StatusCode/100 != 2 {
		p.log.Warn("upstream_error_status", map[string]any{
			"operation": operation,
			"status":    resp.StatusCode,
			"body":      string(data),
		})
		return nil, NewUpstreamError(operation, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// BrowserConfig describes how a browser client reaches the realtime API.
type BrowserConfig struct {
	SessionURL         string `json:"session_url"`
	SocketURL          string `json:"socket_url"`
	Model              string `json:"model"`
	TranscriptionModel string `json:"transcription_model,omitempty"`
	IsAzure            bool   `json:"is_azure"`
}

// BrowserConfig reports the realtime URLs and deployments for browser clients.
func (p *Proxy) BrowserConfig() (BrowserConfig, error) {
	dep, _, err := p.deployments.Resolve(CapabilityRealtime, "")
	if err != nil {
		return BrowserConfig{}, err
	}
	session, err := p.endpoints.Build(EndpointRealtimeSession, dep, "", nil)
	if err != nil {
		return BrowserConfig{}, err
	}
	socket, err := p.endpoints.Build(EndpointRealtimeSocket, dep, "", nil)
	if err != nil {
		return BrowserConfig{}, err
	}
	return BrowserConfig{
		SessionURL:         session,
		SocketURL:          socket,
		Model:              dep,
		TranscriptionModel: p.deployments.Optional(CapabilityTranscription),
		IsAzure:            p.env.Mode == ModeAzure,
	}, nil
}
