package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"nhooyr.io/websocket"

	"github.com/enesunal-m/azproxy"
	"github.com/enesunal-m/azproxy/webrtc"
)

// maxClientBody bounds request bodies read from callers.
const maxClientBody = 4 << 20

// StatusCode maps an error returned by the proxy to an HTTP status.
func StatusCode(err error) int {
	var up *azproxy.UpstreamError
	var ex *webrtc.ExchangeError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &up):
		return upstreamStatus(up.Status)
	case errors.As(err, &ex):
		return upstreamStatus(ex.Status)
	case errors.Is(err, azproxy.ErrInvalidConfig):
		return http.StatusInternalServerError
	case errors.Is(err, azproxy.ErrAuthFailed), errors.Is(err, azproxy.ErrProtocol):
		return http.StatusBadGateway
	case errors.Is(err, azproxy.ErrNoDeployment), errors.Is(err, azproxy.ErrInvalidRequest),
		errors.Is(err, webrtc.ErrInvalidSDP):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func upstreamStatus(status int) int {
	if status < 400 {
		return http.StatusBadGateway
	}
	return status
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var opts azproxy.SessionOptions
	q := r.URL.Query()
	if v := q.Get("voice"); v != "" {
		opts.Voice = &v
	}
	if v := q.Get("instructions"); v != "" {
		opts.Instructions = &v
	}

	session, err := s.proxy.CreateRealtimeSession(r.Context(), opts)
	if err != nil {
		s.fail(w, r, "session", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxClientBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	out, err := s.proxy.CreateResponse(r.Context(), body)
	if err != nil {
		s.fail(w, r, "responses", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.proxy.BrowserConfig()
	if err != nil {
		s.fail(w, r, "config", err)
		return
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		s.fail(w, r, "config", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleRealtime dials upstream before accepting the client so that
// configuration and credential failures still produce an HTTP status.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	upstream, err := s.proxy.DialRealtime(r.Context())
	if err != nil {
		s.fail(w, r, "realtime", err)
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}
	client, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("ws_accept_failed", map[string]any{"err": err})
		_ = upstream.Close(websocket.StatusInternalError, "client handshake failed")
		return
	}

	if err := s.proxy.Relay(r.Context(), client, upstream); err != nil {
		s.log.Warn("relay_failed", map[string]any{"request_id": middleware.GetReqID(r.Context()), "err": err})
	}
}

// handleWebRTC mints a session, then trades the caller's SDP offer for the
// regional endpoint's answer using the session's ephemeral key.
func (s *Server) handleWebRTC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxClientBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	offer := string(body)
	if err := webrtc.ValidateOffer(offer); err != nil {
		s.fail(w, r, "webrtc", err)
		return
	}

	region := s.proxy.Environment().Region
	if region == "" && s.exchanger.BaseURL == "" {
		s.fail(w, r, "webrtc", azproxy.NewConfigError(azproxy.KeyRegion[0], "", "is required for WebRTC"))
		return
	}
	deployment, _, err := s.proxy.Deployments().Resolve(azproxy.CapabilityRealtime, "")
	if err != nil {
		s.fail(w, r, "webrtc", err)
		return
	}

	session, err := s.proxy.CreateRealtimeSession(r.Context(), azproxy.SessionOptions{})
	if err != nil {
		s.fail(w, r, "webrtc", err)
		return
	}
	key, ok := azproxy.ClientSecretValue(session)
	if !ok {
		s.fail(w, r, "webrtc", azproxy.NewProtocolError("realtime session", "client_secret.value"))
		return
	}

	answer, err := s.exchanger.Exchange(r.Context(), region, deployment, key, offer)
	if err != nil {
		s.fail(w, r, "webrtc", err)
		return
	}
	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(answer))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	status := StatusCode(err)
	fields := map[string]any{
		"route":      route,
		"status":     status,
		"request_id": middleware.GetReqID(r.Context()),
		"err":        err,
	}
	if status >= 500 {
		s.log.Error("request_failed", fields)
	} else {
		s.log.Warn("request_failed", fields)
	}
	msg := err.Error()
	if status >= 500 {
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	b, _ := json.Marshal(map[string]string{"error": strings.TrimSpace(msg)})
	writeJSON(w, status, b)
}
