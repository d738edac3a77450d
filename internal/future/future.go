// Package future provides the completion handle shared between the
// goroutine that performs network I/O and the caller waiting for the
// outcome.
//
// A Future resolves exactly once.  Waiting on it deliberately ignores
// context cancellation: once an exchange has started, the caller
// stays suspended until the exchange itself reports a terminal state
// (or an explicit timeout set by the caller expires).
package future

import (
	"sync"
	"sync/atomic"
	"time"

	"r66client/internal/protocol"
)

// Result is the context attached to a completion signal.  Any field
// may be nil; a failed future with a nil Result means the peer never
// assigned a record to the request.
type Result struct {
	Runner *protocol.Runner
	File   *protocol.FileDescriptor
	// Other carries operation-specific data, e.g. the acknowledgement
	// of a test exchange.
	Other any
}

// Ownership states of the connection an exchange runs on.
const (
	pending int32 = iota
	claimed
	abandoned
)

// Future is a single-assignment completion handle.
type Future struct {
	done chan struct{}
	once sync.Once

	success bool
	result  *Result
	cause   error

	owner   atomic.Int32
	partial atomic.Pointer[Result]
}

// New returns an unresolved future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Succeed resolves the future successfully.  It returns false when the
// future was already resolved.
func (f *Future) Succeed(r *Result) bool {
	return f.resolve(true, r, nil)
}

// Fail resolves the future with a cause.  It returns false when the
// future was already resolved.
func (f *Future) Fail(r *Result, cause error) bool {
	return f.resolve(false, r, cause)
}

func (f *Future) resolve(ok bool, r *Result, cause error) bool {
	won := false
	f.once.Do(func() {
		f.success = ok
		f.result = r
		f.cause = cause
		won = true
		close(f.done)
	})
	return won
}

// Done is closed once the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future resolves.
func (f *Future) Await() { <-f.done }

// AwaitTimeout blocks until the future resolves or d elapses.  A
// non-positive d waits without bound.  It reports whether the future
// resolved.
func (f *Future) AwaitTimeout(d time.Duration) bool {
	if d <= 0 {
		f.Await()
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-f.done:
		return true
	case <-timer.C:
		return false
	}
}

// IsDone reports whether the future resolved, without blocking.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// IsSuccess reports a successful resolution.  Only meaningful after
// the future is done.
func (f *Future) IsSuccess() bool {
	<-f.done
	return f.success
}

// Result returns the attached result, possibly nil.
func (f *Future) Result() *Result {
	<-f.done
	return f.result
}

// Cause returns the failure cause, nil on success.
func (f *Future) Cause() error {
	<-f.done
	return f.cause
}

// Claim records that the exchange now holds its connection.  It
// returns false when the waiter already abandoned the future; the
// exchange must then give the connection back untouched.
func (f *Future) Claim() bool {
	return f.owner.CompareAndSwap(pending, claimed)
}

// Abandon records that the waiter gave up before the exchange held its
// connection.  It returns false when the exchange already claimed it.
func (f *Future) Abandon() bool {
	return f.owner.CompareAndSwap(pending, abandoned)
}

// Claimed reports whether the exchange ever held its connection.
func (f *Future) Claimed() bool { return f.owner.Load() == claimed }

// Progress publishes the state known so far, such as the runner the
// peer assigned, for a waiter that gives up before resolution.
func (f *Future) Progress(r *Result) { f.partial.Store(r) }

// Partial returns the last state published with Progress, or nil.
func (f *Future) Partial() *Result { return f.partial.Load() }
