// Package client runs the two network exchanges of the client on a
// pooled connection: the test message and the direct (send-side)
// transfer.  Each exchange runs on its own goroutine and reports
// through a future.Future; the caller decides how long to wait.
package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"r66client/internal/channel"
	ncerr "r66client/internal/errors"
	"r66client/internal/future"
	"r66client/internal/metrics"
	"r66client/internal/protocol"
	"r66client/util"
)

// Client starts exchanges.  The zero value is not usable; use New.
type Client struct {
	logger  *util.Logger
	metrics *metrics.Collector

	// NewID returns the correlation id of a new exchange.
	NewID func() string
}

// New returns a client logging to logger.
func New(logger *util.Logger, m *metrics.Collector) *Client {
	return &Client{logger: logger, metrics: m, NewID: uuid.NewString}
}

// Send describes one direct transfer.
type Send struct {
	Rule      protocol.RuleID
	Path      string // local file
	Info      string
	BlockSize int
	Checksum  bool
	SpecialID int64
}

// exchange is the state of one running operation on a connection.
type exchange struct {
	c    *Client
	conn *channel.Connection
	id   string
	f    *future.Future
}

func (c *Client) start(ctx context.Context, conn *channel.Connection, run func(x *exchange)) *future.Future {
	x := &exchange{c: c, conn: conn, id: c.NewID(), f: future.New()}
	go func() {
		// Acquire errors stay unwrapped: a queued exchange never
		// owns conn and must not get it evicted.
		if err := conn.Acquire(ctx); err != nil {
			x.f.Fail(nil, err)
			return
		}
		defer conn.Release()
		if !x.f.Claim() {
			c.logger.Debug("%s: exchange %s abandoned before it started", conn.Host, x.id)
			return
		}
		run(x)
	}()
	return x.f
}

// Message sends msg and resolves with the peer's acknowledgement in
// Result.Other (a *protocol.Valid).
func (c *Client) Message(ctx context.Context, conn *channel.Connection, msg protocol.Test) *future.Future {
	return c.start(ctx, conn, func(x *exchange) {
		if err := x.write(protocol.TypeTest, msg); err != nil {
			x.f.Fail(nil, err)
			return
		}
		p, err := x.read()
		if err != nil {
			x.f.Fail(nil, err)
			return
		}
		switch p.Type {
		case protocol.TypeValid:
			var v protocol.Valid
			if err := p.Decode(&v); err != nil {
				x.f.Fail(nil, err)
				return
			}
			x.f.Succeed(&future.Result{Other: &v})
		case protocol.TypeError:
			x.failRemote(p, nil)
		default:
			x.f.Fail(nil, fmt.Errorf("unexpected %s answer to test", p.Type))
		}
	})
}

// DirectTransfer sends the file at s.Path.  The future fails without a
// result when the peer never assigned a runner to the request.
func (c *Client) DirectTransfer(ctx context.Context, conn *channel.Connection, s Send) *future.Future {
	return c.start(ctx, conn, func(x *exchange) { x.send(s) })
}

func (x *exchange) send(s Send) {
	file, err := os.Open(s.Path)
	if err != nil {
		x.f.Fail(nil, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		x.f.Fail(nil, err)
		return
	}
	if info.IsDir() {
		x.f.Fail(nil, fmt.Errorf("%s is a directory", s.Path))
		return
	}

	blockSize := s.BlockSize
	if blockSize <= 0 {
		blockSize = protocol.DefaultBlockSize
	}
	err = x.write(protocol.TypeRequest, protocol.Request{
		Rule:      s.Rule,
		Filename:  filepath.Base(s.Path),
		Info:      s.Info,
		BlockSize: blockSize,
		Checksum:  s.Checksum,
		SpecialID: s.SpecialID,
		Size:      info.Size(),
	})
	if err != nil {
		x.f.Fail(nil, err)
		return
	}

	p, err := x.read()
	if err != nil {
		x.f.Fail(nil, err)
		return
	}
	var runner *protocol.Runner
	switch p.Type {
	case protocol.TypeValid:
		var v protocol.Valid
		if err := p.Decode(&v); err != nil {
			x.f.Fail(nil, err)
			return
		}
		runner = v.Runner
	case protocol.TypeError:
		x.failRemote(p, nil)
		return
	default:
		x.f.Fail(nil, fmt.Errorf("unexpected %s answer to request", p.Type))
		return
	}
	if runner == nil {
		x.f.Fail(nil, fmt.Errorf("request accepted without a runner"))
		return
	}
	x.f.Progress(&future.Result{Runner: runner})
	x.c.logger.Debug("transfer %d accepted by %s", runner.SpecialID, x.conn.Host)

	var whole hash.Hash
	if s.Checksum {
		whole = md5.New()
	}
	sent, err := util.ReadBlocks(file, blockSize, func(rank int, block []byte) error {
		d := protocol.Data{Rank: rank, Block: block}
		if whole != nil {
			whole.Write(block)
			sum := md5.Sum(block)
			d.Hash = hex.EncodeToString(sum[:])
		}
		if err := x.write(protocol.TypeData, d); err != nil {
			return err
		}
		x.c.metrics.BytesSent(int64(len(block)))
		return nil
	})
	if err != nil {
		x.f.Fail(&future.Result{Runner: runner}, err)
		return
	}
	x.c.logger.Debug("transfer %d: %d bytes sent to %s", runner.SpecialID, sent, x.conn.Host)

	end := protocol.EndTransfer{}
	if whole != nil {
		end.Hash = hex.EncodeToString(whole.Sum(nil))
	}
	if err := x.write(protocol.TypeEndTransfer, end); err != nil {
		x.f.Fail(&future.Result{Runner: runner}, err)
		return
	}

	p, err = x.read()
	if err != nil {
		x.f.Fail(&future.Result{Runner: runner}, err)
		return
	}
	switch p.Type {
	case protocol.TypeEndRequest:
		var er protocol.EndRequest
		if err := p.Decode(&er); err != nil {
			x.f.Fail(&future.Result{Runner: runner}, err)
			return
		}
		x.f.Succeed(&future.Result{Runner: &er.Runner, File: er.File})
	case protocol.TypeError:
		x.failRemote(p, runner)
	default:
		x.f.Fail(&future.Result{Runner: runner}, fmt.Errorf("unexpected %s answer to end of transfer", p.Type))
	}
}

// ── wire helpers ─────────────────────────────────────────────────────

func (x *exchange) write(t protocol.Type, payload any) error {
	p, err := protocol.New(t, x.id, payload)
	if err != nil {
		return err
	}
	pc := x.conn.Conn()
	if err := pc.WritePacket(p); err != nil {
		return ncerr.Wrap("write", x.conn.Host, pc.RemoteAddr().String(), err)
	}
	return nil
}

// read returns the next packet for this exchange, skipping stale
// answers left over from an abandoned one.
func (x *exchange) read() (*protocol.Packet, error) {
	pc := x.conn.Conn()
	for {
		p, err := pc.ReadPacket()
		if err != nil {
			return nil, ncerr.Wrap("read", x.conn.Host, pc.RemoteAddr().String(), err)
		}
		if p.ID == x.id {
			return p, nil
		}
		x.c.logger.Debug("dropping stale %s packet %s from %s", p.Type, p.ID, x.conn.Host)
	}
}

// failRemote resolves the future from an error packet.  The runner in
// the packet wins over the one known locally.
func (x *exchange) failRemote(p *protocol.Packet, runner *protocol.Runner) {
	var e protocol.Error
	if err := p.Decode(&e); err != nil {
		x.f.Fail(&future.Result{Runner: runner}, err)
		return
	}
	if e.Runner != nil {
		runner = e.Runner
	}
	rerr := ncerr.Remote(e)
	rerr.Runner = runner
	var res *future.Result
	if runner != nil {
		res = &future.Result{Runner: runner}
	}
	x.f.Fail(res, rerr)
}
