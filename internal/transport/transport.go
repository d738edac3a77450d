// Package transport carries protocol packets to a remote host.
//
// Two concerns are kept apart: a [Dialer] decides how a byte stream
// reaches the host (direct TCP or through an SSH gateway) and a
// [PacketConn] decides how packets are framed on that stream
// (newline-delimited JSON or one WebSocket message per packet).
package transport

import (
	"context"
	"net"

	"r66client/internal/protocol"
)

// Framing names accepted in host endpoints.
const (
	FramingStream    = "tcp"
	FramingWebSocket = "ws"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH gateway session).  Stateless dialers return nil.
	Close() error
}

// PacketConn exchanges whole packets with a peer.  Writes may come
// from several goroutines; reads must come from one.
type PacketConn interface {
	WritePacket(p *protocol.Packet) error
	ReadPacket() (*protocol.Packet, error)
	RemoteAddr() net.Addr
	Close() error
}
