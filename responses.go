package azproxy

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
)

// responsesPath is the deployment-scoped Responses API resource.
const responsesPath = "/responses"

// CreateResponse forwards a client Responses API body to the deployment that
// serves its "model" and returns the provider JSON with "output_parsed" added
// when a structured-output payload is present.
func (p *Proxy) CreateResponse(ctx context.Context, body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}

	model := gjson.GetBytes(body, "model")
	if model.Type != gjson.String {
		return nil, &ResolutionError{}
	}
	deployment, err := p.deployments.ResolveModel(model.String())
	if err != nil {
		return nil, err
	}

	target, err := p.endpoints.Build(EndpointREST, deployment, responsesPath, nil)
	if err != nil {
		return nil, err
	}
	shaped, err := p.shaper.ShapeOutbound(body, deployment)
	if err != nil {
		return nil, err
	}

	p.log.Debug("responses_request", map[string]any{"model": model.String(), "deployment": deployment})
	raw, err := p.postJSON(ctx, "responses", target, shaped, nil)
	if err != nil {
		return nil, err
	}
	return NormalizeResponse(raw)
}
