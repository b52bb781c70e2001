package azproxy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func azureBase() MapSource {
	return MapSource{
		"AZURE_OPENAI_ENDPOINT":    "https://res.openai.azure.com/",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"AZURE_OPENAI_API_KEY":     "k",
	}
}

func with(src MapSource, kv ...string) MapSource {
	out := MapSource{}
	for k, v := range src {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func without(src MapSource, keys ...string) MapSource {
	out := with(src)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func TestFirstDefined(t *testing.T) {
	src := MapSource{"A": "", "B": "   ", "C": " value ", "D": "other"}

	v, key, ok := FirstDefined(src, "MISSING", "A", "B", "C", "D")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
	assert.Equal(t, "C", key)

	_, _, ok = FirstDefined(src, "A", "B")
	assert.False(t, ok)

	v, key, ok = Candidates{"D", "C"}.Resolve(src)
	assert.True(t, ok)
	assert.Equal(t, "other", v)
	assert.Equal(t, "D", key)
}

func TestLayered(t *testing.T) {
	l := Layered{MapSource{"A": " ", "B": "top"}, nil, MapSource{"A": "bottom", "B": "ignored"}}

	v, ok := l.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "bottom", v)

	v, ok = l.Lookup("B")
	assert.True(t, ok)
	assert.Equal(t, "top", v)

	_, ok = l.Lookup("C")
	assert.False(t, ok)
}

func TestLoadEnvironment_Azure(t *testing.T) {
	env, err := LoadEnvironment(with(azureBase(),
		"AZURE_OPENAI_REALTIME_API_VERSION", "2024-10-01-preview",
		"AZURE_OPENAI_REALTIME_PATH", "/openai/realtimeapi/sessions",
		"AZURE_OPENAI_DEPLOYMENT", "rt",
		"TRANSCRIPTION_MODEL", "whisper",
		"AZURE_OPENAI_GUARDRAIL_DEPLOYMENT", "guard",
		"AZURE_OPENAI_DEPLOYMENTS", `{"gpt-4o":"prod"}`,
		"AZURE_OPENAI_REGION", "eastus2",
	))
	require.NoError(t, err)

	assert.Equal(t, ModeAzure, env.Mode)
	assert.Equal(t, "https://res.openai.azure.com", env.Endpoint)
	assert.Equal(t, "2025-04-01-preview", env.APIVersion)
	assert.Equal(t, "2024-10-01-preview", env.RealtimeAPIVersion)
	assert.Equal(t, "/openai/realtimeapi/sessions", env.RealtimePath)
	assert.Equal(t, "eastus2", env.Region)
	assert.Equal(t, AuthStaticAPIKey, env.Credentials.Mode)
	assert.Equal(t, "k", env.Credentials.APIKey)
	assert.Equal(t, DeploymentConfig{
		Realtime:      "rt",
		Transcription: "whisper",
		Guardrail:     "guard",
		ModelMap:      `{"gpt-4o":"prod"}`,
		ModelMapSet:   true,
	}, env.Deployments)
}

func TestLoadEnvironment_FallbackKeys(t *testing.T) {
	env, err := LoadEnvironment(MapSource{
		"NEXT_PUBLIC_AZURE_OPENAI_ENDPOINT": "https://fallback.openai.azure.com",
		"OPENAI_API_VERSION":                "2025-01-01",
		"AZURE_OPENAI_TOKEN":                "pre-issued",
		"REALTIME_MODEL":                    "rt-last",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://fallback.openai.azure.com", env.Endpoint)
	assert.Equal(t, "2025-01-01", env.APIVersion)
	assert.Equal(t, "2025-01-01", env.RealtimeAPIVersion, "realtime version falls back to the REST version")
	assert.Equal(t, AuthStaticBearer, env.Credentials.Mode)
	assert.Equal(t, "pre-issued", env.Credentials.Token)
	assert.Equal(t, "rt-last", env.Deployments.Realtime)
	assert.False(t, env.Deployments.ModelMapSet)
}

func TestLoadEnvironment_CredentialPrecedence(t *testing.T) {
	triple := []string{
		"AZURE_TENANT_ID", "tenant",
		"AZURE_CLIENT_ID", "client",
		"AZURE_CLIENT_SECRET", "secret",
	}

	t.Run("client credential wins over api key", func(t *testing.T) {
		env, err := LoadEnvironment(with(azureBase(), triple...))
		require.NoError(t, err)
		assert.Equal(t, AuthClientCredential, env.Credentials.Mode)
		assert.Equal(t, ClientCredentials{
			TenantID:      "tenant",
			ClientID:      "client",
			ClientSecret:  "secret",
			Scope:         DefaultScope,
			AuthorityHost: DefaultAuthorityHost,
		}, env.Credentials.Client)
		assert.Equal(t, "oauth2", env.Credentials.Provider)
	})

	t.Run("prefixed keys and overrides", func(t *testing.T) {
		env, err := LoadEnvironment(with(azureBase(),
			"AZURE_OPENAI_TENANT_ID", "t2",
			"AZURE_TENANT_ID", "ignored",
			"AZURE_OPENAI_CLIENT_ID", "c2",
			"AZURE_OPENAI_CLIENT_SECRET", "s2",
			"AZURE_OPENAI_SCOPE", "api://custom/.default",
			"AZURE_AUTHORITY_HOST", "https://login.example.com",
			"AZURE_OPENAI_TOKEN_PROVIDER", "AzIdentity",
		))
		require.NoError(t, err)
		assert.Equal(t, "t2", env.Credentials.Client.TenantID)
		assert.Equal(t, "api://custom/.default", env.Credentials.Client.Scope)
		assert.Equal(t, "https://login.example.com", env.Credentials.Client.AuthorityHost)
		assert.Equal(t, "azidentity", env.Credentials.Provider)
	})

	t.Run("partial triple falls back to api key", func(t *testing.T) {
		env, err := LoadEnvironment(with(azureBase(), "AZURE_TENANT_ID", "tenant"))
		require.NoError(t, err)
		assert.Equal(t, AuthStaticAPIKey, env.Credentials.Mode)
	})

	t.Run("partial triple without fallback names missing key", func(t *testing.T) {
		_, err := LoadEnvironment(with(without(azureBase(), "AZURE_OPENAI_API_KEY"),
			"AZURE_TENANT_ID", "tenant", "AZURE_CLIENT_SECRET", "s"))
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "AZURE_OPENAI_CLIENT_ID", ce.Field)
	})

	t.Run("api key wins over static bearer", func(t *testing.T) {
		env, err := LoadEnvironment(with(azureBase(), "AZURE_OPENAI_AD_TOKEN", "tok"))
		require.NoError(t, err)
		assert.Equal(t, AuthStaticAPIKey, env.Credentials.Mode)
	})

	t.Run("no credentials", func(t *testing.T) {
		_, err := LoadEnvironment(without(azureBase(), "AZURE_OPENAI_API_KEY"))
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})

	t.Run("unknown token provider", func(t *testing.T) {
		_, err := LoadEnvironment(with(azureBase(), "AZURE_OPENAI_TOKEN_PROVIDER", "msal"))
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "AZURE_OPENAI_TOKEN_PROVIDER", ce.Field)
	})
}

func TestLoadEnvironment_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   MapSource
		field string
	}{
		{"missing api version", without(azureBase(), "AZURE_OPENAI_API_VERSION"), "AZURE_OPENAI_API_VERSION"},
		{"bad scheme", with(azureBase(), "AZURE_OPENAI_ENDPOINT", "ftp://res"), "AZURE_OPENAI_ENDPOINT"},
		{"missing host", with(azureBase(), "AZURE_OPENAI_ENDPOINT", "https://"), "AZURE_OPENAI_ENDPOINT"},
		{"nothing configured", MapSource{}, "AZURE_OPENAI_ENDPOINT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEnvironment(tt.src)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadEnvironment_Direct(t *testing.T) {
	env, err := LoadEnvironment(MapSource{"OPENAI_API_KEY": "sk-test", "OPENAI_MODEL": "gpt-realtime"})
	require.NoError(t, err)

	assert.Equal(t, ModeDirect, env.Mode)
	assert.Equal(t, DefaultDirectBaseURL, env.Endpoint)
	assert.Empty(t, env.APIVersion)
	assert.Equal(t, CredentialConfig{Mode: AuthStaticBearer, Token: "sk-test"}, env.Credentials)
	assert.Equal(t, "gpt-realtime", env.Deployments.Realtime)

	env, err = LoadEnvironment(MapSource{
		"OPENAI_API_KEY":              "sk-test",
		"OPENAI_BASE_URL":             "http://localhost:9000/v1/",
		"OPENAI_REALTIME_SESSION_URL": "http://localhost:9000/custom/sessions",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/v1", env.Endpoint)
	assert.Equal(t, "http://localhost:9000/custom/sessions", env.SessionURL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "azproxy.toml")
	content := `
AZURE_OPENAI_ENDPOINT = "https://file.openai.azure.com"
AZURE_OPENAI_API_VERSION = "2025-04-01-preview"
AZURE_OPENAI_API_KEY = "file-key"
PORT_NUMBER = 8080

[AZURE_OPENAI_DEPLOYMENTS]
"gpt-4o" = "prod-4o"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.openai.azure.com", src["AZURE_OPENAI_ENDPOINT"])
	assert.Equal(t, "8080", src["PORT_NUMBER"])
	assert.JSONEq(t, `{"gpt-4o":"prod-4o"}`, src["AZURE_OPENAI_DEPLOYMENTS"])

	// the environment layer wins over the file
	env, err := LoadEnvironment(Layered{MapSource{"AZURE_OPENAI_API_KEY": "env-key"}, src})
	require.NoError(t, err)
	assert.Equal(t, "env-key", env.Credentials.APIKey)
	assert.True(t, env.Deployments.ModelMapSet)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
