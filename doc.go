// Package azproxy is the core of a server-side proxy in front of Azure OpenAI.
//
// It turns process configuration into authenticated upstream calls:
//   - LoadEnvironment resolves the endpoint, API versions, credentials and
//     deployments from environment keys with fallback chains
//   - TokenCache exchanges Entra ID client credentials for bearer tokens and
//     reuses them until shortly before expiry
//   - Endpoints builds REST, realtime socket and realtime session URLs
//   - Deployments maps capabilities and requested model names to deployments
//   - Shaper rewrites Responses API bodies and lifts structured output into
//     a top-level "output_parsed" field
//
// Basic Usage:
//
//	p, err := azproxy.NewFromSource(azproxy.EnvSource{}, azproxy.Options{
//		Logger: azproxy.NewLoggerFromEnv(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	out, err := p.CreateResponse(ctx, []byte(`{"model":"gpt-4o","input":"hi"}`))
//
// When AZURE_OPENAI_ENDPOINT is not set and OPENAI_API_KEY is, the same calls
// are made against the provider's public API with model names instead of
// deployment paths.
//
// The server package exposes a Proxy over HTTP and the webrtc package
// exchanges browser SDP offers with the regional realtime endpoint.
package azproxy
