package session

import (
	"fmt"

	"r66client/internal/channel"
	ncerr "r66client/internal/errors"
	"r66client/internal/future"
)

// Await blocks until f resolves.  Context cancellation is not
// consulted: only completion or the session timeout end the wait.
// On timeout f is failed with [ncerr.ErrTimeout] and whatever state
// the exchange already published.  Only an exchange that held conn
// can evict it: a connection whose exchange failed at the transport
// level, timeouts included, is dropped so the next operation dials
// afresh.  An operation still queued behind another leaves it alone.
func (s *Session) Await(f *future.Future, conn *channel.Connection) {
	if !f.AwaitTimeout(s.Timeout) {
		queued := f.Abandon()
		if f.Fail(f.Partial(), fmt.Errorf("%w after %v", ncerr.ErrTimeout, s.Timeout)) {
			if queued {
				s.Logger.Warn("%s: still queued after %v, giving up", conn.Host, s.Timeout)
			} else {
				s.Logger.Warn("%s: no answer after %v, dropping connection", conn.Host, s.Timeout)
			}
		}
	}
	if f.Claimed() && !f.IsSuccess() && ncerr.IsConnection(f.Cause()) {
		s.Pool.Evict(conn)
	}
}
