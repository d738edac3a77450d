package transport

import (
	"context"
	"sort"
	"sync"
	"time"

	ncerr "r66client/internal/errors"
	"r66client/internal/protocol"
)

// Endpoint describes how to reach one host identity.
type Endpoint struct {
	Host    protocol.HostID
	Address string
	Framing string // FramingStream or FramingWebSocket
	Path    string // WebSocket request path
	Dialer  Dialer

	HandshakeTimeout time.Duration
}

// Connect dials the endpoint and wraps the stream in its framing.
func (e *Endpoint) Connect(ctx context.Context) (PacketConn, error) {
	if e.Framing == FramingWebSocket {
		pc, err := DialWebSocket(ctx, e.Dialer, e.Address, e.Path, e.HandshakeTimeout)
		if err != nil {
			return nil, ncerr.Wrap("dial", e.Host, e.Address, err)
		}
		return pc, nil
	}

	conn, err := e.Dialer.Dial(ctx, "tcp", e.Address)
	if err != nil {
		return nil, ncerr.Wrap("dial", e.Host, e.Address, err)
	}
	return NewStreamConn(conn), nil
}

// Directory resolves host identities to endpoints.  It owns the
// dialers of its endpoints.
type Directory struct {
	mu        sync.RWMutex
	endpoints map[protocol.HostID]*Endpoint
}

// NewDirectory returns a directory holding eps.
func NewDirectory(eps ...*Endpoint) *Directory {
	d := &Directory{endpoints: make(map[protocol.HostID]*Endpoint, len(eps))}
	for _, ep := range eps {
		d.Add(ep)
	}
	return d
}

// Add registers or replaces the endpoint for ep.Host.
func (d *Directory) Add(ep *Endpoint) {
	d.mu.Lock()
	d.endpoints[ep.Host] = ep
	d.mu.Unlock()
}

// Lookup returns the endpoint for host.
func (d *Directory) Lookup(host protocol.HostID) (*Endpoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ep, ok := d.endpoints[host]
	return ep, ok
}

// Hosts lists known host identities, sorted.
func (d *Directory) Hosts() []protocol.HostID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]protocol.HostID, 0, len(d.endpoints))
	for h := range d.endpoints {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Connect opens a packet connection to host.
func (d *Directory) Connect(ctx context.Context, host protocol.HostID) (PacketConn, error) {
	ep, ok := d.Lookup(host)
	if !ok {
		return nil, &ncerr.ConnectionError{Op: "resolve", Host: host, Err: ncerr.ErrUnknownHost}
	}
	return ep.Connect(ctx)
}

// Close closes every distinct dialer once and joins their errors.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[Dialer]bool)
	var errs []error
	for _, ep := range d.endpoints {
		if ep.Dialer == nil || seen[ep.Dialer] {
			continue
		}
		seen[ep.Dialer] = true
		if err := ep.Dialer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return ncerr.Join(errs...)
}
