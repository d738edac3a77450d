// Package transfer runs direct (send-side) transfers and turns their
// completion into an outcome.Transfer.
package transfer

import (
	"context"
	"fmt"
	"time"

	"r66client/internal/client"
	ncerr "r66client/internal/errors"
	"r66client/internal/future"
	"r66client/internal/outcome"
	"r66client/internal/protocol"
	"r66client/internal/session"
)

// Request describes one transfer to launch.
type Request struct {
	Host      protocol.HostID
	Rule      protocol.RuleID
	File      string // local path
	Info      string
	Checksum  bool
	BlockSize int
	// TargetID is the transfer id to ask the peer for, or
	// protocol.IllegalValue to let it assign one.
	TargetID int64
}

// NewRequest returns a request with default block size and no target id.
func NewRequest(host protocol.HostID, rule protocol.RuleID, file string) Request {
	return Request{
		Host:      host,
		Rule:      rule,
		File:      file,
		BlockSize: protocol.DefaultBlockSize,
		TargetID:  protocol.IllegalValue,
	}
}

// Orchestrator launches transfers on a session.
type Orchestrator struct {
	s *session.Session
}

// New returns an orchestrator bound to s.
func New(s *session.Session) *Orchestrator {
	return &Orchestrator{s: s}
}

// Transfer sends req.File to req.Host and waits for the outcome.  It
// never returns an error: every failure, including an unreachable
// host, is a Failure outcome.
func (o *Orchestrator) Transfer(ctx context.Context, req Request) outcome.Transfer {
	start := time.Now()
	o.s.Logger.Debug("Launch transfer: %s:%s:%s", req.Host, req.Rule, req.File)

	var out outcome.Transfer
	conn, err := o.s.Pool.Open(ctx, req.Host)
	if err != nil {
		out = Classify(req.Host, false, nil, err, time.Since(start))
	} else {
		f := o.s.Client.DirectTransfer(ctx, conn, client.Send{
			Rule:      req.Rule,
			Path:      req.File,
			Info:      req.Info,
			BlockSize: req.BlockSize,
			Checksum:  req.Checksum,
			SpecialID: req.TargetID,
		})
		o.s.Await(f, conn)
		out = Classify(req.Host, f.IsSuccess(), f.Result(), f.Cause(), time.Since(start))
	}

	o.record(req, out)
	return out
}

func (o *Orchestrator) record(req Request, out outcome.Transfer) {
	switch v := out.(type) {
	case outcome.Success:
		o.s.Metrics.TransferSucceeded()
		o.s.Logger.Verbose("transfer %s to %s done in %v", req.File, req.Host, v.Elapsed)
	case outcome.Warning:
		o.s.Metrics.TransferWarned()
		o.s.Logger.Warn("transfer %s to %s warned", req.File, req.Host)
	case outcome.Failure:
		o.s.Metrics.TransferFailed()
		o.s.Metrics.RecordError(v.Message())
		o.s.Logger.Verbose("transfer %s to %s failed: %v", req.File, req.Host, v.Cause)
	}
}

// Classify maps the completion of a transfer to its outcome:
//
//   - failed without a runner: Failure wrapping ncerr.ErrNoTransferID
//   - failed with a runner flagged Warning: Warning carrying the cause
//   - failed otherwise: Failure with the runner
//   - succeeded with a runner flagged Warning: Warning
//   - succeeded: Success
//
// A success that carries no runner is treated as a failure without one.
func Classify(host protocol.HostID, ok bool, res *future.Result, cause error, elapsed time.Duration) outcome.Transfer {
	var runner *protocol.Runner
	var file *protocol.FileDescriptor
	if res != nil {
		runner, file = res.Runner, res.File
	}

	if runner == nil {
		if ok || cause == nil {
			cause = ncerr.ErrNoTransferID
		} else {
			cause = fmt.Errorf("%w: %w", ncerr.ErrNoTransferID, cause)
		}
		return outcome.Failure{Host: host, Cause: cause, Elapsed: elapsed}
	}

	warned := runner.ErrorInfo == protocol.Warning
	switch {
	case !ok && warned:
		return outcome.Warning{
			Summary: runner.Short(" "), Host: host, File: file, Runner: runner,
			Elapsed: elapsed, Code: protocol.Warning, Cause: cause,
		}
	case !ok:
		return outcome.Failure{Host: host, Cause: cause, Runner: runner, Elapsed: elapsed}
	case warned:
		return outcome.Warning{
			Summary: runner.Short(" "), Host: host, File: file, Runner: runner,
			Elapsed: elapsed, Code: protocol.Warning,
		}
	default:
		return outcome.Success{Summary: runner.Short(" "), Host: host, File: file, Runner: runner, Elapsed: elapsed}
	}
}
