package azproxy

import (
	"net/url"
	"strings"
)

// EndpointKind selects which URL shape Build produces.
type EndpointKind int

const (
	// EndpointREST addresses a deployment-scoped REST resource such as /responses.
	EndpointREST EndpointKind = iota
	// EndpointRealtimeSocket is the ws(s) URL of the realtime conversation socket.
	EndpointRealtimeSocket
	// EndpointRealtimeSession is the https URL used to mint a realtime session.
	EndpointRealtimeSession
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointREST:
		return "rest"
	case EndpointRealtimeSocket:
		return "realtime_socket"
	case EndpointRealtimeSession:
		return "realtime_session"
	default:
		return "unknown"
	}
}

const (
	defaultRealtimePath = "/openai/realtime"
	deploymentToken     = "{deployment}"
	apiVersionParam     = "api-version"
)

// Endpoints builds provider URLs for one Environment.
type Endpoints struct {
	mode               Mode
	base               string
	apiVersion         string
	realtimeAPIVersion string
	realtimePath       string
	sessionURL         string
}

// NewEndpoints creates a builder from env. The base endpoint has already been
// stripped of trailing slashes by LoadEnvironment; it is trimmed again here so
// hand-built environments behave the same.
func NewEndpoints(env *Environment) *Endpoints {
	rtVersion := env.RealtimeAPIVersion
	if rtVersion == "" {
		rtVersion = env.APIVersion
	}
	return &Endpoints{
		mode:               env.Mode,
		base:               trimSlashes(env.Endpoint),
		apiVersion:         env.APIVersion,
		realtimeAPIVersion: rtVersion,
		realtimePath:       strings.TrimSpace(env.RealtimePath),
		sessionURL:         strings.TrimSpace(env.SessionURL),
	}
}

// Build returns the absolute URL for kind. resourcePath is only used for
// EndpointREST. Values in extra are appended to the query; in Azure mode an
// "api-version" entry in extra is replaced by the configured version so the
// parameter appears exactly once.
func (e *Endpoints) Build(kind EndpointKind, deployment, resourcePath string, extra url.Values) (string, error) {
	if deployment == "" {
		return "", NewConfigError("deployment", "", "is required to build a "+kind.String()+" URL")
	}
	if e.mode == ModeDirect {
		return e.buildDirect(kind, deployment, resourcePath, extra)
	}

	switch kind {
	case EndpointREST:
		if strings.TrimSpace(resourcePath) == "" {
			return "", NewConfigError("resourcePath", "", "is required to build a REST URL")
		}
		path := "/openai/deployments/" + url.PathEscape(deployment) + normalizePath(resourcePath)
		return e.compose(e.base, path, e.apiVersion, extra, nil)

	case EndpointRealtimeSocket:
		return e.compose(toSocketScheme(e.base), defaultRealtimePath, e.realtimeAPIVersion, extra,
			url.Values{"deployment": {deployment}})

	case EndpointRealtimeSession:
		path, encodesDeployment := e.sessionPath(deployment)
		var fixed url.Values
		if !encodesDeployment {
			fixed = url.Values{"deployment": {deployment}}
		}
		return e.compose(e.base, path, e.realtimeAPIVersion, extra, fixed)
	}
	return "", NewConfigError("kind", kind.String(), "unknown endpoint kind")
}

// sessionPath applies the configured realtime path template. The second result
// reports whether the path already identifies the deployment.
func (e *Endpoints) sessionPath(deployment string) (string, bool) {
	tmpl := e.realtimePath
	if tmpl == "" {
		return defaultRealtimePath, false
	}
	encodes := strings.Contains(tmpl, deploymentToken) || strings.Contains(tmpl, "/deployments/")
	if strings.Contains(tmpl, deploymentToken) {
		tmpl = strings.ReplaceAll(tmpl, deploymentToken, url.PathEscape(deployment))
	}
	return normalizePath(tmpl), encodes
}

func (e *Endpoints) compose(base, path, version string, extra, fixed url.Values) (string, error) {
	u, err := url.Parse(base + path)
	if err != nil {
		return "", NewConfigError("endpoint", base+path, "invalid URL format")
	}
	q := mergeQuery(extra, fixed)
	q.Del(apiVersionParam)
	if version != "" {
		q.Set(apiVersionParam, version)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (e *Endpoints) buildDirect(kind EndpointKind, deployment, resourcePath string, extra url.Values) (string, error) {
	var raw string
	var fixed url.Values
	switch kind {
	case EndpointREST:
		if strings.TrimSpace(resourcePath) == "" {
			return "", NewConfigError("resourcePath", "", "is required to build a REST URL")
		}
		raw = e.base + normalizePath(resourcePath)
	case EndpointRealtimeSocket:
		raw = toSocketScheme(e.base) + "/realtime"
		fixed = url.Values{"model": {deployment}}
	case EndpointRealtimeSession:
		raw = e.sessionURL
		if raw == "" {
			raw = e.base + "/realtime/sessions"
		}
	default:
		return "", NewConfigError("kind", kind.String(), "unknown endpoint kind")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewConfigError("endpoint", raw, "invalid URL format")
	}
	q := mergeQuery(u.Query(), extra, fixed)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func mergeQuery(sets ...url.Values) url.Values {
	q := url.Values{}
	for _, s := range sets {
		for k, vs := range s {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
	}
	return q
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func toSocketScheme(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
