package azproxy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"nhooyr.io/websocket"
)

// relayReadLimit bounds a single realtime frame; audio appends can be large.
const relayReadLimit = 10 << 20

// pingInterval keeps idle upstream sockets from being reaped by intermediaries.
const pingInterval = 20 * time.Second

// ErrorEvent is the realtime API error event. Only the fields that are logged
// are decoded; the frame itself is relayed untouched.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// DialRealtime opens the upstream realtime socket for the configured realtime
// deployment, authenticating the handshake with the active credential.
func (p *Proxy) DialRealtime(ctx context.Context) (*websocket.Conn, error) {
	deployment, _, err := p.deployments.Resolve(CapabilityRealtime, "")
	if err != nil {
		return nil, err
	}
	target, err := p.endpoints.Build(EndpointRealtimeSocket, deployment, "", nil)
	if err != nil {
		return nil, err
	}
	h, err := p.Headers(ctx)
	if err != nil {
		return nil, err
	}
	h.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{HTTPHeader: h, HTTPClient: p.client})
	if err != nil {
		if resp != nil && resp.StatusCode/100 != 2 && resp.StatusCode != 101 {
			return nil, NewUpstreamError("realtime socket", resp.StatusCode, err.Error())
		}
		return nil, err
	}
	conn.SetReadLimit(relayReadLimit)
	p.log.Info("ws_connected", map[string]any{"deployment": deployment})
	return conn, nil
}

// Relay copies frames between a client socket and an upstream realtime socket
// until either side closes or ctx is done. Frames are forwarded opaquely.
func (p *Proxy) Relay(ctx context.Context, client, upstream *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := p.log.Named("relay").WithContext(map[string]any{"relay_id": uuid.NewString()})
	log.Info("relay_started", nil)

	client.SetReadLimit(relayReadLimit)
	upstream.SetReadLimit(relayReadLimit)

	errc := make(chan error, 2)
	go func() { errc <- pipe(ctx, client, upstream, nil) }()
	go func() {
		errc <- pipe(ctx, upstream, client, func(data []byte) {
			if gjson.GetBytes(data, "type").String() != "error" {
				return
			}
			var ev ErrorEvent
			if err := json.Unmarshal(data, &ev); err == nil {
				log.Warn("upstream_error_event", map[string]any{"type": ev.Error.Type, "code": ev.Error.Code, "message": ev.Error.Message})
			}
		})
	}()
	go pingLoop(ctx, upstream)

	first := <-errc

	status := websocket.CloseStatus(first)
	send := status
	switch status {
	case -1, websocket.StatusNoStatusRcvd, websocket.StatusAbnormalClosure, websocket.StatusTLSHandshake:
		// reserved codes cannot be sent on the wire
		send = websocket.StatusNormalClosure
	}
	if status == -1 {
		status = websocket.StatusNormalClosure
	}
	_ = client.Close(send, "relay closed")
	_ = upstream.Close(send, "relay closed")
	cancel()
	<-errc

	switch {
	case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway,
		status == websocket.StatusNoStatusRcvd, errors.Is(first, context.Canceled):
		log.Info("relay_closed", map[string]any{"status": int(status)})
		return nil
	}
	log.Warn("relay_closed", map[string]any{"status": int(status), "err": first})
	return first
}

// pipe forwards frames from src to dst. inspect sees text frames before they are written.
func pipe(ctx context.Context, src, dst *websocket.Conn, inspect func([]byte)) error {
	for {
		typ, data, err := src.Read(ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageText && inspect != nil {
			inspect(data)
		}
		if err := dst.Write(ctx, typ, data); err != nil {
			return err
		}
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = conn.Ping(pctx)
			cancel()
		}
	}
}
