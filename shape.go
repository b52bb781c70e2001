package azproxy

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// guardrailPolicy is the content policy applied to both input and output.
const guardrailPolicy = "guardrail_content_policy"

// Guardrail is one entry of the Responses API "guardrails" array.
type Guardrail struct {
	DeploymentName string       `json:"deployment_name"`
	Input          PolicyTarget `json:"input"`
	Output         PolicyTarget `json:"output"`
}

// PolicyTarget names the policy type applied to one side of a call.
type PolicyTarget struct {
	Type string `json:"type"`
}

// Shaper rewrites outbound request bodies and normalizes provider responses.
type Shaper struct {
	mode      Mode
	guardrail string
}

// NewShaper creates a shaper. guardrail may be empty, in which case no
// guardrail entries are ever injected.
func NewShaper(mode Mode, guardrail string) *Shaper {
	return &Shaper{mode: mode, guardrail: guardrail}
}

// ShapeOutbound prepares a client body for the synchronous Responses call.
// In Azure mode "model" is removed because the deployment is part of the URL;
// in direct mode it is rewritten to deployment. "stream" is always false.
// A "guardrails" key supplied by the caller is passed through untouched
// (only insignificant whitespace may change).
func (s *Shaper) ShapeOutbound(body []byte, deployment string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}

	if s.mode == ModeDirect {
		m, _ := json.Marshal(deployment)
		fields["model"] = m
	} else {
		delete(fields, "model")
	}
	fields["stream"] = json.RawMessage("false")

	if _, has := fields["guardrails"]; !has && s.guardrail != "" {
		g, err := json.Marshal([]Guardrail{{
			DeploymentName: s.guardrail,
			Input:          PolicyTarget{Type: guardrailPolicy},
			Output:         PolicyTarget{Type: guardrailPolicy},
		}})
		if err != nil {
			return nil, err
		}
		fields["guardrails"] = g
	}
	return json.Marshal(fields)
}

// ExtractParsed finds the structured-output payload of a Responses API body.
// It scans output[*].content[*] in document order and returns the first of:
// a json_schema item's "parsed" or "schema.parsed", or an output_json item's
// "parsed" or "json". A JSON null counts as present.
func ExtractParsed(body []byte) (json.RawMessage, bool) {
	output := gjson.GetBytes(body, "output")
	if !output.IsArray() {
		return nil, false
	}

	var found gjson.Result
	output.ForEach(func(_, message gjson.Result) bool {
		content := message.Get("content")
		if !content.IsArray() {
			return true
		}
		content.ForEach(func(_, item gjson.Result) bool {
			var paths []string
			switch item.Get("type").String() {
			case "json_schema":
				paths = []string{"parsed", "schema.parsed"}
			case "output_json":
				paths = []string{"parsed", "json"}
			default:
				return true
			}
			for _, p := range paths {
				if r := item.Get(p); r.Exists() {
					found = r
					return false
				}
			}
			return true
		})
		return !found.Exists()
	})

	if !found.Exists() {
		return nil, false
	}
	return json.RawMessage(found.Raw), true
}

// NormalizeResponse adds a top-level "output_parsed" field when the body
// carries an extractable structured-output payload. Bodies without one, or
// that are not JSON objects, are returned unchanged.
func NormalizeResponse(body []byte) ([]byte, error) {
	parsed, ok := ExtractParsed(body)
	if !ok {
		return body, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return body, nil
	}
	fields["output_parsed"] = parsed
	return json.Marshal(fields)
}
