package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	ncerr "r66client/internal/errors"
	"r66client/internal/peer"
	"r66client/internal/protocol"
	"r66client/internal/transport"
	"r66client/internal/tunnel"
	"r66client/util"
)

// ── TCPDialer ────────────────────────────────────────────────────────

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &transport.TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &transport.TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// ── packet framing ───────────────────────────────────────────────────

func TestStreamConn_RoundTrip(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := transport.NewStreamConn(a), transport.NewStreamConn(b)
	defer ca.Close()
	defer cb.Close()

	want, _ := protocol.New(protocol.TypeData, "id-1", protocol.Data{Rank: 3, Block: []byte{0, 1, '\n', 255}})
	go ca.WritePacket(want) //nolint:errcheck

	got, err := cb.ReadPacket()
	if err != nil {
		t.Fatal(err)
	}
	var d protocol.Data
	if err := got.Decode(&d); err != nil {
		t.Fatal(err)
	}
	if got.ID != "id-1" || d.Rank != 3 || string(d.Block) != "\x00\x01\n\xff" {
		t.Errorf("got %+v / %+v", got, d)
	}
}

// exchangeTest sends a test packet on pc and expects it echoed in a
// valid answer.
func exchangeTest(t *testing.T, pc transport.PacketConn) {
	t.Helper()
	p, _ := protocol.New(protocol.TypeTest, "t-1", protocol.Test{
		Header: protocol.TestHeader, Middle: protocol.TestMiddle, Count: protocol.TestCount,
	})
	if err := pc.WritePacket(p); err != nil {
		t.Fatalf("write: %v", err)
	}
	ans, err := pc.ReadPacket()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ans.Type != protocol.TypeValid || ans.ID != "t-1" {
		t.Fatalf("answer = %s %s", ans.Type, ans.ID)
	}
	var v protocol.Valid
	if err := ans.Decode(&v); err != nil || v.Header != protocol.TestHeader {
		t.Errorf("valid = %+v, %v", v, err)
	}
}

// ── Endpoint / Directory ─────────────────────────────────────────────

func TestEndpoint_Stream(t *testing.T) {
	srv, err := peer.NewServer(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ep := &transport.Endpoint{Host: "hosta", Address: srv.Addr(), Framing: transport.FramingStream,
		Dialer: &transport.TCPDialer{Timeout: time.Second}}
	pc, err := ep.Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()
	exchangeTest(t, pc)
}

func TestEndpoint_WebSocket(t *testing.T) {
	srv, err := peer.NewWebSocketServer("/r66", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ep := &transport.Endpoint{Host: "hostws", Address: srv.Addr(), Framing: transport.FramingWebSocket,
		Path: "/r66", Dialer: &transport.TCPDialer{Timeout: time.Second}, HandshakeTimeout: time.Second}
	pc, err := ep.Connect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()
	exchangeTest(t, pc)
}

func TestEndpoint_WebSocketWrongPath(t *testing.T) {
	srv, err := peer.NewWebSocketServer("/r66", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ep := &transport.Endpoint{Host: "hostws", Address: srv.Addr(), Framing: transport.FramingWebSocket,
		Path: "/elsewhere", Dialer: &transport.TCPDialer{Timeout: time.Second}}
	_, err = ep.Connect(context.Background())
	var ce *ncerr.ConnectionError
	if !errors.As(err, &ce) || ce.Host != "hostws" {
		t.Fatalf("err = %v, want ConnectionError for hostws", err)
	}
}

func TestEndpoint_RefusedIsConnectionError(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	ep := &transport.Endpoint{Host: "down", Address: util.FormatAddr("127.0.0.1", port),
		Dialer: &transport.TCPDialer{Timeout: time.Second}}
	_, err = ep.Connect(context.Background())
	if !ncerr.IsConnection(err) {
		t.Fatalf("err = %v, want connection error", err)
	}
	if !ncerr.IsRetryable(err) {
		t.Errorf("refused dial should be retryable: %v", err)
	}
}

func TestEndpoint_ThroughSSHGateway(t *testing.T) {
	srv, err := peer.NewServer(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	g, err := peer.NewGateway()
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	d := transport.NewSSHDialer(&tunnel.SSHConfig{
		User: "r66", Host: "127.0.0.1", Port: g.Port(),
		Password: func() (string, error) { return peer.GatewayPassword, nil },
	}, util.NewLogger(0))
	defer d.Close()

	ep := &transport.Endpoint{Host: "behind", Address: srv.Addr(), Dialer: d}
	for i := 0; i < 2; i++ {
		pc, err := ep.Connect(context.Background())
		if err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		exchangeTest(t, pc)
		pc.Close()
	}
	if g.Forwards() != 2 {
		t.Errorf("forwards = %d, want 2 over one gateway session", g.Forwards())
	}
}

type countingDialer struct {
	transport.TCPDialer
	closes int
}

func (d *countingDialer) Close() error {
	d.closes++
	return nil
}

func TestDirectory(t *testing.T) {
	shared := &countingDialer{}
	dir := transport.NewDirectory(
		&transport.Endpoint{Host: "b", Address: "127.0.0.1:1", Dialer: shared},
		&transport.Endpoint{Host: "a", Address: "127.0.0.1:2", Dialer: shared},
	)

	if hosts := dir.Hosts(); len(hosts) != 2 || hosts[0] != "a" {
		t.Errorf("Hosts = %v", hosts)
	}

	_, err := dir.Connect(context.Background(), "nope")
	if !errors.Is(err, ncerr.ErrUnknownHost) || !ncerr.IsConnection(err) {
		t.Errorf("unknown host err = %v", err)
	}

	if err := dir.Close(); err != nil {
		t.Fatal(err)
	}
	if shared.closes != 1 {
		t.Errorf("shared dialer closed %d times, want 1", shared.closes)
	}
}
