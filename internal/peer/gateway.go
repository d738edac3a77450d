package peer

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
)

// GatewayPassword is the only password a Gateway accepts.  Public key
// authentication accepts any key.
const GatewayPassword = "gateway-secret"

// Gateway is a loopback SSH server that forwards direct-tcpip
// channels, standing in for a bastion in front of remote hosts.
type Gateway struct {
	ln       net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.PublicKey
	forwards atomic.Int64

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[net.Conn]bool
	closed bool
}

// NewGateway starts a gateway on 127.0.0.1 with a fresh host key.
func NewGateway() (*Gateway, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == GatewayPassword {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		ln:      ln,
		config:  cfg,
		hostKey: signer.PublicKey(),
		conns:   make(map[net.Conn]bool),
	}
	g.wg.Add(1)
	go g.acceptLoop()
	return g, nil
}

// Addr returns the gateway's listen address.
func (g *Gateway) Addr() string { return g.ln.Addr().String() }

// Port returns the gateway's listen port.
func (g *Gateway) Port() int { return g.ln.Addr().(*net.TCPAddr).Port }

// HostKey returns the key the gateway presents during the handshake.
func (g *Gateway) HostKey() ssh.PublicKey { return g.hostKey }

// Forwards counts accepted direct-tcpip channels.
func (g *Gateway) Forwards() int64 { return g.forwards.Load() }

// Close stops the gateway and drops every client session.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	for c := range g.conns {
		c.Close()
	}
	g.mu.Unlock()

	g.ln.Close()
	g.wg.Wait()
}

func (g *Gateway) acceptLoop() {
	defer g.wg.Done()
	for {
		nc, err := g.ln.Accept()
		if err != nil {
			return
		}
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			nc.Close()
			return
		}
		g.conns[nc] = true
		g.mu.Unlock()

		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.handle(nc)
			g.mu.Lock()
			delete(g.conns, nc)
			g.mu.Unlock()
		}()
	}
}

// directTCPIP is the RFC 4254 §7.2 channel payload.
type directTCPIP struct {
	Host     string
	Port     uint32
	OrigHost string
	OrigPort uint32
}

func (g *Gateway) handle(nc net.Conn) {
	defer nc.Close()

	_, chans, reqs, err := ssh.NewServerConn(nc, g.config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			nch.Reject(ssh.UnknownChannelType, "only direct-tcpip is supported") //nolint:errcheck
			continue
		}
		var req directTCPIP
		if err := ssh.Unmarshal(nch.ExtraData(), &req); err != nil {
			nch.Reject(ssh.ConnectionFailed, "bad direct-tcpip payload") //nolint:errcheck
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(req.Host, strconv.Itoa(int(req.Port))))
		if err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, chReqs, err := nch.Accept()
		if err != nil {
			target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		g.forwards.Add(1)
		go pipe(ch, target)
	}
}

func pipe(ch ssh.Channel, target net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(ch, target) //nolint:errcheck
		done <- struct{}{}
	}()
	go func() {
		io.Copy(target, ch) //nolint:errcheck
		done <- struct{}{}
	}()
	<-done
	ch.Close()
	target.Close()
}
