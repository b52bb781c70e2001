// Package webrtc exchanges browser SDP offers with the regional realtime
// WebRTC endpoint on behalf of a client holding an ephemeral key.
//
// Go programs that act as headless realtime clients build their offer with
// NewOffer, mint an ephemeral key through the proxy, and trade the offer for
// an answer with ExchangeSDP or an Exchanger.
package webrtc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrExchange is matched by every *ExchangeError.
var ErrExchange = errors.New("webrtc: sdp exchange failed")

// ExchangeError carries a non-success answer from the regional endpoint.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("webrtc: sdp exchange failed (%d): %s", e.Status, e.Body)
}

// Is implements error matching for ExchangeError.
func (e *ExchangeError) Is(target error) bool { return target == ErrExchange }

// RegionURL is the regional realtime WebRTC endpoint for an Azure region such
// as "eastus2" or "swedencentral".
func RegionURL(region string) string {
	return fmt.Sprintf("https://%s.realtimeapi-preview.ai.azure.com/v1/realtimertc", strings.TrimSpace(region))
}

// Exchanger posts SDP offers to a regional endpoint.
type Exchanger struct {
	// BaseURL overrides RegionURL; used by tests and private deployments.
	BaseURL string
	Client  *http.Client
}

// Exchange sends offer for deployment using the ephemeral key and returns the
// SDP answer. The offer is validated first.
func (x *Exchanger) Exchange(ctx context.Context, region, deployment, ephemeral, offer string) (string, error) {
	if deployment == "" || ephemeral == "" {
		return "", errors.New("webrtc: deployment and ephemeral key are required")
	}
	if err := ValidateOffer(offer); err != nil {
		return "", err
	}
	base := x.BaseURL
	if base == "" {
		if strings.TrimSpace(region) == "" {
			return "", errors.New("webrtc: region is required")
		}
		base = RegionURL(region)
	}
	target := base + "?model=" + url.QueryEscape(deployment)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBufferString(offer))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+ephemeral)
	req.Header.Set("Content-Type", "application/sdp")

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", &ExchangeError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := ValidateAnswer(string(b)); err != nil {
		return "", err
	}
	return string(b), nil
}

// ExchangeSDP is Exchange with the regional endpoint for region.
func ExchangeSDP(ctx context.Context, client *http.Client, region, deployment, ephemeral, offer string) (string, error) {
	x := &Exchanger{Client: client}
	return x.Exchange(ctx, region, deployment, ephemeral, offer)
}
