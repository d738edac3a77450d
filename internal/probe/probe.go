// Package probe checks that a remote host answers the test exchange.
package probe

import (
	"context"
	"errors"

	"r66client/internal/outcome"
	"r66client/internal/protocol"
	"r66client/internal/session"
)

var errNoHeader = errors.New("acknowledgement carries no header")

// Prober runs connectivity probes on a session.
type Prober struct {
	s *session.Session
}

// New returns a prober bound to s.
func New(s *session.Session) *Prober {
	return &Prober{s: s}
}

// Probe opens (or reuses) the connection to host and sends a test
// message.  Every failure is reported as a ProbeFailure; Probe never
// returns an error.
func (p *Prober) Probe(ctx context.Context, host protocol.HostID) outcome.Connectivity {
	o := p.probe(ctx, host)
	p.s.Metrics.Probe(o.OK())
	if f, ok := o.(outcome.ProbeFailure); ok {
		p.s.Logger.Verbose("probe %s: %v", host, f.Cause)
	}
	return o
}

func (p *Prober) probe(ctx context.Context, host protocol.HostID) outcome.Connectivity {
	conn, err := p.s.Pool.Open(ctx, host)
	if err != nil {
		return outcome.ProbeFailure{Host: host, Cause: err}
	}

	f := p.s.Client.Message(ctx, conn, protocol.Test{
		Header: protocol.TestHeader,
		Middle: protocol.TestMiddle,
		Count:  protocol.TestCount,
	})
	p.s.Await(f, conn)

	if !f.IsSuccess() {
		cause := f.Cause()
		if cause == nil {
			cause = errors.New("test exchange failed")
		}
		return outcome.ProbeFailure{Host: host, Cause: cause}
	}
	var header string
	if res := f.Result(); res != nil {
		if v, ok := res.Other.(*protocol.Valid); ok && v != nil {
			header = v.Header
		}
	}
	if header == "" {
		return outcome.ProbeFailure{Host: host, Cause: errNoHeader}
	}
	return outcome.ProbeSuccess{Host: host, Header: header}
}
