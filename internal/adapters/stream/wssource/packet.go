package wssource

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Engine.IO packet types (first byte of every frame).
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
)

// Socket.IO packet types (second byte of an Engine.IO message).
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketConnectError = '4'
)

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// packet is one decoded frame.
type packet struct {
	engine byte
	socket byte
	// event name and raw first argument, for socket events
	event string
	args  []json.RawMessage
	data  string
}

// decodePacket splits a text frame into its Engine.IO and Socket.IO parts.
// Only the default namespace is understood.
func decodePacket(frame string) (packet, error) {
	if frame == "" {
		return packet{}, fmt.Errorf("%w: empty frame", ErrProtocol)
	}
	p := packet{engine: frame[0], data: frame[1:]}
	if p.engine != engineMessage {
		return p, nil
	}
	if p.data == "" {
		return p, fmt.Errorf("%w: message without socket type", ErrProtocol)
	}
	p.socket = p.data[0]
	p.data = p.data[1:]
	if p.socket != socketEvent {
		return p, nil
	}

	// Optional ack id between the type and the payload.
	body := strings.TrimLeft(p.data, "0123456789")
	if strings.HasPrefix(body, "/") {
		return p, fmt.Errorf("%w: namespaced event %q", ErrProtocol, body)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return p, fmt.Errorf("%w: event payload: %w", ErrProtocol, err)
	}
	if len(raw) == 0 {
		return p, fmt.Errorf("%w: event without name", ErrProtocol)
	}
	if err := json.Unmarshal(raw[0], &p.event); err != nil {
		return p, fmt.Errorf("%w: event name: %w", ErrProtocol, err)
	}
	p.args = raw[1:]
	return p, nil
}
