package util

import (
	"errors"
	"io"
	"net"
)

// ReadBlocks reads r in blocks of size bytes and hands each one to fn
// with its 0-based rank.  The final block may be shorter.  The slice
// passed to fn is only valid for the duration of the call.
func ReadBlocks(r io.Reader, size int, fn func(rank int, block []byte) error) (int64, error) {
	if size <= 0 {
		size = DefaultBufSize
	}
	buf := GetBuf(size)
	defer PutBuf(buf)

	var total int64
	for rank := 0; ; rank++ {
		n, err := io.ReadFull(r, *buf)
		if n > 0 {
			total += int64(n)
			if ferr := fn(rank, (*buf)[:n]); ferr != nil {
				return total, ferr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		default:
			return total, err
		}
	}
}

// IsClosed returns true for errors that only mean the other side (or
// our own teardown) closed the connection.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
