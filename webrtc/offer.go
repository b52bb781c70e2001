package webrtc

import (
	"errors"
	"fmt"
	"strings"

	pion "github.com/pion/webrtc/v3"
)

// ErrInvalidSDP is returned for offers and answers that cannot be parsed or
// carry no media sections.
var ErrInvalidSDP = errors.New("webrtc: invalid sdp")

// ValidateOffer parses sdp as an offer and requires at least one media section.
func ValidateOffer(sdp string) error {
	return validate(pion.SDPTypeOffer, sdp)
}

// ValidateAnswer parses sdp as an answer and requires at least one media section.
func ValidateAnswer(sdp string) error {
	return validate(pion.SDPTypeAnswer, sdp)
}

func validate(typ pion.SDPType, sdp string) error {
	if strings.TrimSpace(sdp) == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidSDP, typ)
	}
	desc := pion.SessionDescription{Type: typ, SDP: sdp}
	parsed, err := desc.Unmarshal()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSDP, typ, err)
	}
	if len(parsed.MediaDescriptions) == 0 {
		return fmt.Errorf("%w: %s has no media sections", ErrInvalidSDP, typ)
	}

	// An offerer always proposes a=setup:actpass; an answerer never does.
	roles := []string{}
	if v, ok := parsed.Attribute("setup"); ok {
		roles = append(roles, v)
	}
	for _, m := range parsed.MediaDescriptions {
		if v, ok := m.Attribute("setup"); ok {
			roles = append(roles, v)
		}
	}
	for _, r := range roles {
		if (r == "actpass") != (typ == pion.SDPTypeOffer) {
			return fmt.Errorf("%w: a=setup:%s is not valid in an %s", ErrInvalidSDP, r, typ)
		}
	}
	return nil
}

// OfferOptions configures NewOffer.
type OfferOptions struct {
	IceServers []pion.ICEServer
	// DataChannel is the label of the events channel; "realtime-channel" if empty.
	DataChannel string
}

// NewOffer builds a receive-only audio offer with an events data channel, the
// same shape a browser client produces. The returned peer connection owns the
// local description and must be closed by the caller.
func NewOffer(opt OfferOptions) (*pion.PeerConnection, string, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: opt.IceServers})
	if err != nil {
		return nil, "", err
	}
	label := opt.DataChannel
	if label == "" {
		label = "realtime-channel"
	}
	if _, err := pc.CreateDataChannel(label, nil); err != nil {
		pc.Close()
		return nil, "", err
	}
	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, "", err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, "", err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, "", err
	}
	return pc, offer.SDP, nil
}
