// Package protocol implements the WebSocket (RFC 6455) wire layer: handshake
// validation and 101 response construction, and the frame codec. It builds
// directly on httpcore rather than net/http, so the handshake runs through
// the same byte-level request parser as plain HTTP routes.
package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/arkwave/netcore/httpcore"
)

// WebSocketGUID is the RFC 6455 magic string used to derive Sec-WebSocket-Accept.
const WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// RequiredVersion is the only WebSocket protocol version this server accepts.
const RequiredVersion = "13"

// ValidateHandshake checks the fixed set of headers RFC 6455 requires for an
// upgrade request: GET method, Upgrade: websocket, Connection containing
// "upgrade", Sec-WebSocket-Version: 13, and a non-empty Sec-WebSocket-Key.
func ValidateHandshake(req *httpcore.Request) error {
	if req.Method != httpcore.MethodGet {
		return httpcore.NewError(httpcore.KindBadRequest, "handshake requires GET")
	}
	upgrade, _ := req.Header("Upgrade")
	if !headerContainsToken(upgrade, "websocket") {
		return httpcore.NewError(httpcore.KindBadRequest, "missing Upgrade: websocket")
	}
	connection, _ := req.Header("Connection")
	if !headerContainsToken(connection, "upgrade") {
		return httpcore.NewError(httpcore.KindBadRequest, "missing Connection: Upgrade")
	}
	if version, _ := req.Header("Sec-WebSocket-Version"); version != RequiredVersion {
		return httpcore.NewError(httpcore.KindBadRequest, "unsupported Sec-WebSocket-Version")
	}
	if key, _ := req.Header("Sec-WebSocket-Key"); key == "" {
		return httpcore.NewError(httpcore.KindBadRequest, "missing Sec-WebSocket-Key")
	}
	return nil
}

// AcceptKey computes Sec-WebSocket-Accept from a client's Sec-WebSocket-Key.
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// BuildHandshakeResponse validates req and, on success, returns the 101
// Switching Protocols response. Sec-WebSocket-Protocol and
// Sec-WebSocket-Extensions are echoed through if present but are not
// otherwise interpreted.
func BuildHandshakeResponse(req *httpcore.Request) (*httpcore.Response, error) {
	if err := ValidateHandshake(req); err != nil {
		return nil, err
	}
	key, _ := req.Header("Sec-WebSocket-Key")

	resp := httpcore.NewResponse()
	resp.Status = 101
	resp.Header("Upgrade", "websocket")
	resp.Header("Connection", "Upgrade")
	resp.Header("Sec-WebSocket-Accept", AcceptKey(key))
	resp.Header("Sec-WebSocket-Version", RequiredVersion)
	if proto, ok := req.Header("Sec-WebSocket-Protocol"); ok && proto != "" {
		resp.Header("Sec-WebSocket-Protocol", proto)
	}
	if ext, ok := req.Header("Sec-WebSocket-Extensions"); ok && ext != "" {
		resp.Header("Sec-WebSocket-Extensions", ext)
	}
	return resp, nil
}

func headerContainsToken(value, token string) bool {
	token = strings.ToLower(token)
	for _, part := range strings.Split(value, ",") {
		if strings.ToLower(strings.TrimSpace(part)) == token {
			return true
		}
	}
	return false
}
