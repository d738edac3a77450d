package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"r66client/internal/protocol"
)

// wsConn carries one packet per WebSocket text message.
type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// DialWebSocket opens a WebSocket session to ws://address/path.  The
// underlying stream comes from d, so a gateway dialer tunnels the
// session as well.
func DialWebSocket(ctx context.Context, d Dialer, address, path string, handshake time.Duration) (PacketConn, error) {
	wd := websocket.Dialer{
		NetDialContext:   d.Dial,
		HandshakeTimeout: handshake,
	}
	u := url.URL{Scheme: "ws", Host: address, Path: path}

	conn, resp, err := wd.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("websocket %s: %w (status %d)", u.String(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket %s: %w", u.String(), err)
	}
	return &wsConn{conn: conn}, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// UpgradeWebSocket turns an inbound HTTP request into a packet
// connection.  On failure the upgrader has already answered the
// client.
func UpgradeWebSocket(w http.ResponseWriter, r *http.Request) (PacketConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

func (c *wsConn) WritePacket(p *protocol.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(p)
}

func (c *wsConn) ReadPacket() (*protocol.Packet, error) {
	var p protocol.Packet
	if err := c.conn.ReadJSON(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *wsConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close sends a close frame, best effort, then drops the connection.
func (c *wsConn) Close() error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}
