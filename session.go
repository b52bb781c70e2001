package azproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// SessionOptions customizes a realtime session minted for a client.
// All fields are optional; the deployment always comes from configuration.
type SessionOptions struct {
	// Voice specifies which voice to use for audio responses.
	// Available voices: "alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"
	Voice *string `json:"voice,omitempty"`

	// Instructions provide system-level guidance to the assistant.
	Instructions *string `json:"instructions,omitempty"`
}

// validVoices lists the voices accepted by the realtime API.
var validVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// ValidateSessionOptions performs validation on session options.
func ValidateSessionOptions(o SessionOptions) error {
	if o.Voice != nil {
		valid := false
		for _, v := range validVoices {
			if *o.Voice == v {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: invalid voice %q, must be one of: %v", ErrInvalidRequest, *o.Voice, validVoices)
		}
	}

	if o.Instructions != nil && len(*o.Instructions) > 10000 {
		return fmt.Errorf("%w: instructions too long (%d characters), maximum is 10000", ErrInvalidRequest, len(*o.Instructions))
	}
	return nil
}

type sessionPayload struct {
	Model              string                 `json:"model"`
	Voice              *string                `json:"voice,omitempty"`
	Instructions       *string                `json:"instructions,omitempty"`
	InputTranscription *inputTranscriptionCfg `json:"input_audio_transcription,omitempty"`
}

type inputTranscriptionCfg struct {
	Model string `json:"model"`
}

// CreateRealtimeSession mints a short-lived realtime session for the configured
// realtime deployment and returns the provider JSON verbatim. A success answer
// without a "client_secret" is reported as a *ProtocolError.
func (p *Proxy) CreateRealtimeSession(ctx context.Context, opts SessionOptions) (json.RawMessage, error) {
	if err := ValidateSessionOptions(opts); err != nil {
		return nil, err
	}

	deployment, _, err := p.deployments.Resolve(CapabilityRealtime, "")
	if err != nil {
		return nil, err
	}
	target, err := p.endpoints.Build(EndpointRealtimeSession, deployment, "", nil)
	if err != nil {
		return nil, err
	}

	payload := sessionPayload{
		Model:        deployment,
		Voice:        opts.Voice,
		Instructions: opts.Instructions,
	}
	if t := p.deployments.Optional(CapabilityTranscription); t != "" {
		payload.InputTranscription = &inputTranscriptionCfg{Model: t}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set("OpenAI-Beta", "realtime=v1")
	data, err := p.postJSON(ctx, "realtime session", target, body, h)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, NewProtocolError("realtime session", "a JSON body")
	}
	if _, ok := ClientSecretValue(data); !ok {
		p.log.Error("session_missing_client_secret", map[string]any{"body": string(data)})
		return nil, NewProtocolError("realtime session", "client_secret")
	}
	p.log.Info("session_created", map[string]any{"deployment": deployment, "session_id": gjson.GetBytes(data, "id").String()})
	return json.RawMessage(data), nil
}

// ClientSecretValue returns the ephemeral key of a minted session. Both the
// object form {"client_secret":{"value":...}} and a bare string are accepted.
func ClientSecretValue(session []byte) (string, bool) {
	cs := gjson.GetBytes(session, "client_secret")
	switch {
	case cs.Type == gjson.String && cs.String() != "":
		return cs.String(), true
	case cs.IsObject():
		if v := cs.Get("value"); v.Type == gjson.String && v.String() != "" {
			return v.String(), true
		}
	}
	return "", false
}
