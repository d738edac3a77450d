package channel

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "r66client/internal/errors"
	"r66client/internal/metrics"
	"r66client/internal/protocol"
	"r66client/internal/transport"
	"r66client/util"
)

type fakeConn struct {
	host     string
	closeErr error
	closes   atomic.Int32
}

func (f *fakeConn) WritePacket(*protocol.Packet) error    { return nil }
func (f *fakeConn) ReadPacket() (*protocol.Packet, error) { return nil, net.ErrClosed }
func (f *fakeConn) RemoteAddr() net.Addr                  { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (f *fakeConn) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

type fakeConnector struct {
	delay    time.Duration
	fail     map[string]error
	closeErr error

	mu    sync.Mutex
	dials map[string]int
	conns []*fakeConn

	cancelled atomic.Bool
}

func newConnector() *fakeConnector {
	return &fakeConnector{dials: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeConnector) Connect(ctx context.Context, host protocol.HostID) (transport.PacketConn, error) {
	time.Sleep(f.delay)
	if ctx.Err() != nil {
		f.cancelled.Store(true)
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials[host]++
	if err := f.fail[host]; err != nil {
		return nil, err
	}
	c := &fakeConn{host: host, closeErr: f.closeErr}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) dialCount(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials[host]
}

func newPool(c Connector) (*Pool, *metrics.Collector) {
	m := metrics.New()
	return NewPool(c, util.NewLogger(0), m), m
}

func TestPool_OpenIsIdempotent(t *testing.T) {
	p, m := newPool(newConnector())
	ctx := context.Background()

	a, err := p.Open(ctx, "hosta")
	require.NoError(t, err)
	b, err := p.Open(ctx, "hosta")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int64(1), m.TotalConnections())
	assert.Equal(t, []string{"hosta"}, p.Hosts())
}

func TestPool_ConcurrentOpenSharesOneDial(t *testing.T) {
	fc := newConnector()
	fc.delay = 20 * time.Millisecond
	p, _ := newPool(fc)

	const n = 16
	conns := make([]*Connection, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Open(context.Background(), "hosta")
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, fc.dialCount("hosta"))
	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}
}

func TestPool_SharedDialSurvivesCancelledStarter(t *testing.T) {
	conn := newConnector()
	conn.delay = 150 * time.Millisecond
	p, _ := newPool(conn)

	ctx, cancel := context.WithCancel(context.Background())
	starter := make(chan error, 1)
	go func() {
		_, err := p.Open(ctx, "hosta")
		starter <- err
	}()
	time.Sleep(20 * time.Millisecond)

	joined := make(chan *Connection, 1)
	go func() {
		c, err := p.Open(context.Background(), "hosta")
		assert.NoError(t, err)
		joined <- c
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-starter, context.Canceled, "the cancelled caller stops waiting")
	c := <-joined
	require.NotNil(t, c)
	assert.False(t, conn.cancelled.Load(), "dial must not see the starter's cancellation")
	assert.Equal(t, 1, conn.dialCount("hosta"))
	assert.Equal(t, []protocol.HostID{"hosta"}, p.Hosts())
}

func TestPool_DistinctHostsDistinctConnections(t *testing.T) {
	p, m := newPool(newConnector())

	a, err := p.Open(context.Background(), "hosta")
	require.NoError(t, err)
	b, err := p.Open(context.Background(), "hostb")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int64(2), m.ActiveConnections())
}

func TestPool_FailedDialIsNotCached(t *testing.T) {
	fc := newConnector()
	refused := ncerr.Wrap("dial", "hosta", "127.0.0.1:1", errors.New("connection refused"))
	fc.fail["hosta"] = refused
	p, _ := newPool(fc)

	_, err := p.Open(context.Background(), "hosta")
	require.ErrorIs(t, err, refused)
	assert.Empty(t, p.Hosts())

	delete(fc.fail, "hosta")
	c, err := p.Open(context.Background(), "hosta")
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, 2, fc.dialCount("hosta"))
}

func TestPool_EvictRedials(t *testing.T) {
	fc := newConnector()
	p, m := newPool(fc)

	a, err := p.Open(context.Background(), "hosta")
	require.NoError(t, err)
	p.Evict(a)
	p.Evict(a) // second evict is harmless

	b, err := p.Open(context.Background(), "hosta")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, int32(1), fc.conns[0].closes.Load())
	assert.Equal(t, int64(1), m.ActiveConnections())
}

func TestPool_CloseAll(t *testing.T) {
	fc := newConnector()
	p, m := newPool(fc)
	for _, h := range []string{"hosta", "hostb", "hostc"} {
		_, err := p.Open(context.Background(), h)
		require.NoError(t, err)
	}

	require.NoError(t, p.CloseAll())
	assert.Empty(t, p.Hosts())
	assert.Equal(t, int64(0), m.ActiveConnections())
	for _, c := range fc.conns {
		assert.Equal(t, int32(1), c.closes.Load())
	}

	_, err := p.Open(context.Background(), "hosta")
	assert.ErrorIs(t, err, ncerr.ErrClosedChannel)
	assert.NoError(t, p.CloseAll(), "second CloseAll has nothing to close")
}

func TestPool_CloseAllJoinsErrors(t *testing.T) {
	fc := newConnector()
	boom := errors.New("reset by peer")
	fc.closeErr = boom
	p, _ := newPool(fc)
	_, _ = p.Open(context.Background(), "hosta")
	_, _ = p.Open(context.Background(), "hostb")

	err := p.CloseAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "hosta")
	assert.Contains(t, err.Error(), "hostb")
	assert.Empty(t, p.Hosts(), "pool is emptied even when closes fail")
}

func TestConnection_AcquireIsExclusive(t *testing.T) {
	p, _ := newPool(newConnector())
	c, err := p.Open(context.Background(), "hosta")
	require.NoError(t, err)

	require.NoError(t, c.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Acquire(ctx), context.DeadlineExceeded)

	c.Release()
	require.NoError(t, c.Acquire(context.Background()))
	c.Release()
}

func TestConnection_AcquireAfterClose(t *testing.T) {
	p, _ := newPool(newConnector())
	c, err := p.Open(context.Background(), "hosta")
	require.NoError(t, err)
	require.NoError(t, c.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() { done <- c.Acquire(context.Background()) }()
	p.Evict(c)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ncerr.ErrClosedChannel)
	case <-time.After(time.Second):
		t.Fatal("Acquire should wake up when the connection closes")
	}
}
