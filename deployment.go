package azproxy

import (
	"encoding/json"
	"strings"
)

// Capability is a logical slot that maps to a provider deployment.
type Capability string

const (
	CapabilityRealtime      Capability = "realtime"
	CapabilityTranscription Capability = "transcription"
	CapabilityGuardrail     Capability = "guardrail"
	CapabilityDefault       Capability = "default"
)

// Deployments resolves capabilities and model names to deployment names.
// It is immutable after construction and safe for concurrent use.
type Deployments struct {
	slots       map[Capability]string
	models      map[string]string
	passthrough bool
}

// NewDeployments builds a resolver from cfg. A malformed model map is logged
// and treated as empty so that every model lookup reports absent.
func NewDeployments(cfg DeploymentConfig, log *Logger) *Deployments {
	if log == nil {
		log = NopLogger()
	}
	d := &Deployments{
		slots: map[Capability]string{
			CapabilityRealtime:      strings.TrimSpace(cfg.Realtime),
			CapabilityTranscription: strings.TrimSpace(cfg.Transcription),
			CapabilityGuardrail:     strings.TrimSpace(cfg.Guardrail),
		},
		models:      map[string]string{},
		passthrough: !cfg.ModelMapSet,
	}
	if cfg.ModelMapSet {
		var m map[string]string
		if err := json.Unmarshal([]byte(cfg.ModelMap), &m); err != nil {
			log.Warn("deployment_map_invalid", map[string]any{"key": KeyDeploymentMap[0], "err": err})
		} else {
			for k, v := range m {
				if v = strings.TrimSpace(v); v != "" {
					d.models[k] = v
				}
			}
		}
	}
	return d
}

// Resolve returns the deployment bound to capability. For CapabilityDefault the
// requested model is looked up in the model map; when no map is configured the
// model name itself is the deployment.
//
// An unresolved realtime deployment is a *ConfigError. Other capabilities
// report absence with ok == false and a nil error.
func (d *Deployments) Resolve(capability Capability, requestedModel string) (deployment string, ok bool, err error) {
	switch capability {
	case CapabilityRealtime:
		if v := d.slots[capability]; v != "" {
			return v, true, nil
		}
		return "", false, NewConfigError(KeyRealtimeDeployment[0], "",
			"realtime deployment name is missing; set one of "+strings.Join(KeyRealtimeDeployment, ", "))
	case CapabilityTranscription, CapabilityGuardrail:
		v := d.slots[capability]
		return v, v != "", nil
	case CapabilityDefault:
		model := strings.TrimSpace(requestedModel)
		if model == "" {
			return "", false, nil
		}
		if d.passthrough {
			return model, true, nil
		}
		v, found := d.models[model]
		return v, found, nil
	}
	return "", false, NewConfigError("capability", string(capability), "unknown capability")
}

// ResolveModel resolves a client-requested model and converts absence into a
// *ResolutionError suitable for a bad-request response.
func (d *Deployments) ResolveModel(model string) (string, error) {
	dep, ok, err := d.Resolve(CapabilityDefault, model)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ResolutionError{Model: strings.TrimSpace(model)}
	}
	return dep, nil
}

// Optional returns the deployment for an optional capability, or "".
func (d *Deployments) Optional(capability Capability) string {
	v, _, _ := d.Resolve(capability, "")
	return v
}
