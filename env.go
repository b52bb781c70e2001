package azproxy

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the corresponding keys are not configured.
const (
	DefaultScope         = "https://cognitiveservices.azure.com/.default"
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultDirectBaseURL = "https://api.openai.com/v1"
)

// Source looks up configuration values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads the process environment.
type EnvSource struct{}

// Lookup implements Source.
func (EnvSource) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

// MapSource serves values from a map. Used for config files and tests.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Layered consults each source in order; the first source holding a non-empty
// value for a key wins.
type Layered []Source

// Lookup implements Source.
func (l Layered) Lookup(key string) (string, bool) {
	for _, s := range l {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// LoadFile reads a flat TOML file whose keys are configuration key names, e.g.
//
//	AZURE_OPENAI_ENDPOINT = "https://my-resource.openai.azure.com"
//	AZURE_OPENAI_API_VERSION = "2025-04-01-preview"
//
//	[AZURE_OPENAI_DEPLOYMENTS]
//	"gpt-4o" = "prod-gpt4o"
//
// Tables and arrays are re-encoded as JSON strings so that map-valued keys such
// as AZURE_OPENAI_DEPLOYMENTS can be written natively.
func LoadFile(path string) (MapSource, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("azproxy: read config file %s: %w", path, err)
	}
	out := make(MapSource, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case map[string]any, []any, []map[string]any:
			b, err := json.Marshal(tv)
			if err != nil {
				return nil, fmt.Errorf("azproxy: encode config key %s: %w", k, err)
			}
			out[k] = string(b)
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out, nil
}

// Candidates is an ordered list of keys that all configure the same logical value.
type Candidates []string

// Resolve returns the first defined, non-empty value and the key it came from.
func (c Candidates) Resolve(src Source) (value, key string, ok bool) {
	return FirstDefined(src, c...)
}

// FirstDefined returns the trimmed value of the first key that is set to a
// non-blank value.
func FirstDefined(src Source, keys ...string) (value, key string, ok bool) {
	for _, k := range keys {
		v, found := src.Lookup(k)
		if !found {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, k, true
		}
	}
	return "", "", false
}

// Configuration keys and their fallback chains.
var (
	KeyEndpoint           = Candidates{"AZURE_OPENAI_ENDPOINT", "NEXT_PUBLIC_AZURE_OPENAI_ENDPOINT"}
	KeyAPIVersion         = Candidates{"AZURE_OPENAI_API_VERSION", "OPENAI_API_VERSION"}
	KeyRealtimeAPIVersion = Candidates{"AZURE_OPENAI_REALTIME_API_VERSION", "NEXT_PUBLIC_AZURE_OPENAI_REALTIME_API_VERSION"}
	KeyTenantID           = Candidates{"AZURE_OPENAI_TENANT_ID", "AZURE_TENANT_ID"}
	KeyClientID           = Candidates{"AZURE_OPENAI_CLIENT_ID", "AZURE_CLIENT_ID"}
	KeyClientSecret       = Candidates{"AZURE_OPENAI_CLIENT_SECRET", "AZURE_CLIENT_SECRET"}
	KeyScope              = Candidates{"AZURE_OPENAI_SCOPE"}
	KeyAuthorityHost      = Candidates{"AZURE_AUTHORITY_HOST"}
	KeyTokenProvider      = Candidates{"AZURE_OPENAI_TOKEN_PROVIDER"}
	KeyAPIKey             = Candidates{"AZURE_OPENAI_API_KEY"}
	KeyStaticToken        = Candidates{"AZURE_OPENAI_AD_TOKEN", "AZURE_OPENAI_TOKEN"}
	KeyRealtimePath       = Candidates{"AZURE_OPENAI_REALTIME_PATH"}
	KeyRegion             = Candidates{"AZURE_OPENAI_REGION"}
	KeyDirectAPIKey       = Candidates{"OPENAI_API_KEY"}
	KeyDirectBaseURL      = Candidates{"OPENAI_BASE_URL", "NEXT_PUBLIC_REALTIME_BASE_URL"}
	KeyDirectSessionURL   = Candidates{"OPENAI_REALTIME_SESSION_URL"}

	KeyRealtimeDeployment      = Candidates{"AZURE_OPENAI_REALTIME_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT", "OPENAI_MODEL", "REALTIME_MODEL"}
	KeyTranscriptionDeployment = Candidates{"AZURE_OPENAI_TRANSCRIBE_DEPLOYMENT", "AZURE_OPENAI_TRANSCRIPTION_DEPLOYMENT", "TRANSCRIPTION_MODEL"}
	KeyGuardrailDeployment     = Candidates{"AZURE_OPENAI_GUARDRAIL_DEPLOYMENT"}
	KeyDeploymentMap           = Candidates{"AZURE_OPENAI_DEPLOYMENTS"}
)

// Environment is the provider configuration resolved once per process.
type Environment struct {
	Mode               Mode
	Endpoint           string // base URL without trailing slash
	APIVersion         string // empty in direct mode
	RealtimeAPIVersion string
	RealtimePath       string // optional session path template
	SessionURL         string // direct mode session URL override
	Region             string // regional WebRTC endpoint, optional
	Credentials        CredentialConfig
	Deployments        DeploymentConfig
}

// DeploymentConfig holds the raw per-capability deployment settings.
type DeploymentConfig struct {
	Realtime      string
	Transcription string
	Guardrail     string
	// ModelMap is the raw JSON object mapping model names to deployments.
	ModelMap string
	// ModelMapSet reports whether a model map key was present at all.
	ModelMapSet bool
}

// LoadEnvironment resolves and validates the provider environment from src.
// Azure mode is selected when an Azure endpoint is configured; otherwise direct
// provider mode is used when OPENAI_API_KEY is set.
func LoadEnvironment(src Source) (*Environment, error) {
	env := &Environment{}

	env.Deployments.Realtime, _, _ = KeyRealtimeDeployment.Resolve(src)
	env.Deployments.Transcription, _, _ = KeyTranscriptionDeployment.Resolve(src)
	env.Deployments.Guardrail, _, _ = KeyGuardrailDeployment.Resolve(src)
	env.Deployments.ModelMap, _, env.Deployments.ModelMapSet = KeyDeploymentMap.Resolve(src)
	env.Region, _, _ = KeyRegion.Resolve(src)

	endpoint, key, isAzure := KeyEndpoint.Resolve(src)
	if !isAzure {
		if err := loadDirect(env, src); err != nil {
			return nil, err
		}
		return env, nil
	}

	env.Mode = ModeAzure
	base, err := normalizeEndpoint(key, endpoint)
	if err != nil {
		return nil, err
	}
	env.Endpoint = base

	version, _, ok := KeyAPIVersion.Resolve(src)
	if !ok {
		return nil, NewConfigError(KeyAPIVersion[0], "", "is required in Azure mode")
	}
	env.APIVersion = version
	env.RealtimeAPIVersion = version
	if v, _, ok := KeyRealtimeAPIVersion.Resolve(src); ok {
		env.RealtimeAPIVersion = v
	}
	env.RealtimePath, _, _ = KeyRealtimePath.Resolve(src)

	creds, err := loadCredentials(src)
	if err != nil {
		return nil, err
	}
	env.Credentials = creds
	return env, nil
}

func loadDirect(env *Environment, src Source) error {
	apiKey, _, ok := KeyDirectAPIKey.Resolve(src)
	if !ok {
		return NewConfigError(KeyEndpoint[0], "", "no provider configured: set AZURE_OPENAI_ENDPOINT or OPENAI_API_KEY")
	}
	env.Mode = ModeDirect
	env.Credentials = CredentialConfig{Mode: AuthStaticBearer, Token: apiKey}

	base, key, ok := KeyDirectBaseURL.Resolve(src)
	if !ok {
		base, key = DefaultDirectBaseURL, KeyDirectBaseURL[0]
	}
	normalized, err := normalizeEndpoint(key, base)
	if err != nil {
		return err
	}
	env.Endpoint = normalized
	env.SessionURL, _, _ = KeyDirectSessionURL.Resolve(src)
	return nil
}

func loadCredentials(src Source) (CredentialConfig, error) {
	provider, _, _ := KeyTokenProvider.Resolve(src)
	provider = strings.ToLower(provider)
	switch provider {
	case "":
		provider = "oauth2"
	case "oauth2", "azidentity":
	default:
		return CredentialConfig{}, NewConfigError(KeyTokenProvider[0], provider, `must be "oauth2" or "azidentity"`)
	}

	tenant, _, hasTenant := KeyTenantID.Resolve(src)
	client, _, hasClient := KeyClientID.Resolve(src)
	secret, _, hasSecret := KeyClientSecret.Resolve(src)

	if hasTenant && hasClient && hasSecret {
		scope, _, ok := KeyScope.Resolve(src)
		if !ok {
			scope = DefaultScope
		}
		authority, _, ok := KeyAuthorityHost.Resolve(src)
		if !ok {
			authority = DefaultAuthorityHost
		}
		return CredentialConfig{
			Mode: AuthClientCredential,
			Client: ClientCredentials{
				TenantID:      tenant,
				ClientID:      client,
				ClientSecret:  secret,
				Scope:         scope,
				AuthorityHost: authority,
			},
			Provider: provider,
		}, nil
	}

	if key, _, ok := KeyAPIKey.Resolve(src); ok {
		return CredentialConfig{Mode: AuthStaticAPIKey, APIKey: key}, nil
	}
	if tok, _, ok := KeyStaticToken.Resolve(src); ok {
		return CredentialConfig{Mode: AuthStaticBearer, Token: tok}, nil
	}

	// A partial client-credential triple is reported by its first missing key.
	if hasTenant || hasClient || hasSecret {
		for _, c := range []struct {
			ok   bool
			keys Candidates
		}{{hasTenant, KeyTenantID}, {hasClient, KeyClientID}, {hasSecret, KeyClientSecret}} {
			if !c.ok {
				return CredentialConfig{}, NewConfigError(c.keys[0], "", "is required for client credential authentication")
			}
		}
	}
	return CredentialConfig{}, NewConfigError(KeyAPIKey[0], "",
		"credentials are missing: provide AZURE_TENANT_ID/AZURE_CLIENT_ID/AZURE_CLIENT_SECRET, AZURE_OPENAI_API_KEY or AZURE_OPENAI_AD_TOKEN")
}

func normalizeEndpoint(key, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewConfigError(key, raw, "invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", NewConfigError(key, raw, "must be an http:// or https:// URL")
	}
	if u.Host == "" {
		return "", NewConfigError(key, raw, "missing host")
	}
	return trimSlashes(raw), nil
}

func trimSlashes(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
