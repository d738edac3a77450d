package transport

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"r66client/internal/protocol"
)

// streamConn frames packets as newline-delimited JSON on a byte stream.
type streamConn struct {
	conn net.Conn
	dec  *json.Decoder

	wmu sync.Mutex
	bw  *bufio.Writer
	enc *json.Encoder
}

// NewStreamConn wraps a byte-stream connection.
func NewStreamConn(conn net.Conn) PacketConn {
	bw := bufio.NewWriter(conn)
	return &streamConn{
		conn: conn,
		dec:  json.NewDecoder(bufio.NewReader(conn)),
		bw:   bw,
		enc:  json.NewEncoder(bw),
	}
}

func (c *streamConn) WritePacket(p *protocol.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.enc.Encode(p); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *streamConn) ReadPacket() (*protocol.Packet, error) {
	var p protocol.Packet
	if err := c.dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *streamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *streamConn) Close() error { return c.conn.Close() }
