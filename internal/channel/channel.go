// Package channel keeps one network session per remote host identity
// and shares it between the operations of a run.
//
// Concurrent opens for the same host share a single dial.  The pool
// never retries: a failed dial is returned to every waiter and the
// next Open tries again.
package channel

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	ncerr "r66client/internal/errors"
	"r66client/internal/metrics"
	"r66client/internal/protocol"
	"r66client/internal/transport"
	"r66client/util"
)

// Connector opens a packet connection to a host identity.
// *transport.Directory is the production implementation.
type Connector interface {
	Connect(ctx context.Context, host protocol.HostID) (transport.PacketConn, error)
}

// Connection is an open session to one host.  Operations take it
// exclusively with Acquire and give it back with Release.
type Connection struct {
	Host   protocol.HostID
	Opened time.Time

	conn    transport.PacketConn
	sem     chan struct{}
	metrics *metrics.Collector

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func newConnection(host protocol.HostID, pc transport.PacketConn, m *metrics.Collector) *Connection {
	return &Connection{
		Host:    host,
		Opened:  time.Now(),
		conn:    pc,
		sem:     make(chan struct{}, 1),
		metrics: m,
		closed:  make(chan struct{}),
	}
}

// Conn returns the underlying packet connection.
func (c *Connection) Conn() transport.PacketConn { return c.conn }

// Acquire waits until no other operation is using the connection.
func (c *Connection) Acquire(ctx context.Context) error {
	select {
	case <-c.closed:
		return ncerr.ErrClosedChannel
	default:
	}
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-c.closed:
		return ncerr.ErrClosedChannel
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release ends the current operation.
func (c *Connection) Release() {
	select {
	case <-c.sem:
	default:
	}
}

// Closed is closed once the connection is.
func (c *Connection) Closed() <-chan struct{} { return c.closed }

// Close closes the connection once; later calls return the first
// result.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
		c.metrics.ConnectionClosed()
	})
	return c.closeErr
}

// ── Pool ─────────────────────────────────────────────────────────────

// Pool maps host identities to open connections.
type Pool struct {
	connector Connector
	logger    *util.Logger
	metrics   *metrics.Collector

	group  singleflight.Group
	mu     sync.Mutex
	conns  map[protocol.HostID]*Connection
	closed bool
}

// NewPool returns an empty pool dialing through connector.
func NewPool(connector Connector, logger *util.Logger, m *metrics.Collector) *Pool {
	return &Pool{
		connector: connector,
		logger:    logger,
		metrics:   m,
		conns:     make(map[protocol.HostID]*Connection),
	}
}

func (p *Pool) lookup(host protocol.HostID) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ncerr.ErrClosedChannel
	}
	return p.conns[host], nil
}

// Open returns the connection for host, dialing it if needed.  Callers
// racing on the same host share one dial and its result.  The shared
// dial ignores the cancellation of whichever caller started it and is
// bounded by the dialer's own timeout; each caller still stops waiting
// when its ctx is done.
func (p *Pool) Open(ctx context.Context, host protocol.HostID) (*Connection, error) {
	if c, err := p.lookup(host); c != nil || err != nil {
		return c, err
	}

	dialCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(host, func() (interface{}, error) {
		if c, err := p.lookup(host); c != nil || err != nil {
			return c, err
		}

		p.logger.Debug("channel: opening %s", host)
		pc, err := p.connector.Connect(dialCtx, host)
		if err != nil {
			p.metrics.RecordError(err.Error())
			return nil, err
		}

		c := newConnection(host, pc, p.metrics)
		p.metrics.ConnectionOpened()

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.Close()
			return nil, ncerr.ErrClosedChannel
		}
		p.conns[host] = c
		p.mu.Unlock()

		p.logger.Verbose("channel: %s connected to %s", host, pc.RemoteAddr())
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			p.logger.Debug("channel: shared open for %s", host)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evict removes c from the pool if it is still the entry for its host
// and closes it.  The next Open for that host dials again.
func (p *Pool) Evict(c *Connection) {
	p.mu.Lock()
	if cur, ok := p.conns[c.Host]; ok && cur == c {
		delete(p.conns, c.Host)
	}
	p.mu.Unlock()

	if err := c.Close(); err != nil && !util.IsClosed(err) {
		p.logger.Debug("channel: closing %s: %v", c.Host, err)
	}
}

// Hosts lists hosts with an open connection, sorted.
func (p *Pool) Hosts() []protocol.HostID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.HostID, 0, len(p.conns))
	for h := range p.conns {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// CloseAll closes every connection and marks the pool closed: any
// later Open fails with [ncerr.ErrClosedChannel].  The pool is empty
// afterwards even when some closes fail; their errors are joined.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[protocol.HostID]*Connection)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for host, c := range conns {
		if err := c.Close(); err != nil && !util.IsClosed(err) {
			errs = append(errs, ncerr.Wrap("close", host, "", err))
		}
	}
	if len(conns) > 0 {
		p.logger.Verbose("channel: closed %d connection(s)", len(conns))
	}
	return ncerr.Join(errs...)
}
