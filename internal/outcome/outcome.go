// Package outcome holds the closed result types of the client's two
// operations.  Each completed operation yields exactly one variant,
// built once when its completion is observed.
package outcome

import (
	"time"

	"r66client/internal/protocol"
)

// Kind tags a transfer outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindWarning
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindWarning:
		return "warning"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ── Transfer ─────────────────────────────────────────────────────────

// Transfer is one of Success, Warning or Failure.
type Transfer interface {
	Kind() Kind
	transfer()
}

// Success is a clean transfer.
type Success struct {
	Summary string // one-line runner description
	Host    protocol.HostID
	File    *protocol.FileDescriptor
	Runner  *protocol.Runner
	Elapsed time.Duration
}

// Warning is a transfer that moved data but was flagged by the peer.
// Cause is set when the peer reported the warning as a failure.
type Warning struct {
	Summary string
	Host    protocol.HostID
	File    *protocol.FileDescriptor
	Runner  *protocol.Runner
	Elapsed time.Duration
	Code    protocol.ErrorCode
	Cause   error
}

// Failure is a transfer that did not complete.  Runner is nil when the
// peer never assigned one.
type Failure struct {
	Host    protocol.HostID
	Cause   error
	Runner  *protocol.Runner
	Elapsed time.Duration
}

func (Success) Kind() Kind { return KindSuccess }
func (Warning) Kind() Kind { return KindWarning }
func (Failure) Kind() Kind { return KindFailure }

func (Success) transfer() {}
func (Warning) transfer() {}
func (Failure) transfer() {}

// Message returns the cause text, or "" without a cause.
func (f Failure) Message() string {
	if f.Cause == nil {
		return ""
	}
	return f.Cause.Error()
}

// ── Connectivity ─────────────────────────────────────────────────────

// Connectivity is ProbeSuccess or ProbeFailure.
type Connectivity interface {
	OK() bool
	connectivity()
}

// ProbeSuccess carries the header of the peer's acknowledgement.
type ProbeSuccess struct {
	Host   protocol.HostID
	Header string
}

// ProbeFailure carries why the probe failed.  Cause is never nil.
type ProbeFailure struct {
	Host  protocol.HostID
	Cause error
}

func (ProbeSuccess) OK() bool { return true }
func (ProbeFailure) OK() bool { return false }

func (ProbeSuccess) connectivity() {}
func (ProbeFailure) connectivity() {}
