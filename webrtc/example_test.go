package webrtc_test

import (
	"context"
	"log"

	pion "github.com/pion/webrtc/v3"

	"github.com/enesunal-m/azproxy/webrtc"
)

// A headless client builds its own offer and completes the handshake with an
// ephemeral key obtained from the proxy's /session route.
func ExampleNewOffer() {
	pc, offer, err := webrtc.NewOffer(webrtc.OfferOptions{})
	if err != nil {
		log.Fatal(err)
	}
	defer pc.Close()

	answer, err := webrtc.ExchangeSDP(context.Background(), nil, "eastus2", "gpt-4o-realtime", "ek_...", offer)
	if err != nil {
		log.Fatal(err)
	}
	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: answer}); err != nil {
		log.Fatal(err)
	}
}
