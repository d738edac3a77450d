package util

import "sync"

// DefaultBufSize matches the default transfer block size (64 KiB).
const DefaultBufSize = 64 * 1024

// BufPool provides reusable block buffers for file transfers, reducing
// GC pressure when many blocks are read back to back.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf returns a buffer of exactly size bytes.  Buffers of the
// default size come from the pool; callers must hand them back with
// [PutBuf] when finished.
func GetBuf(size int) *[]byte {
	if size <= 0 || size > DefaultBufSize {
		buf := make([]byte, size)
		return &buf
	}
	buf := BufPool.Get().(*[]byte)
	*buf = (*buf)[:size]
	return buf
}

// PutBuf returns a pooled buffer for reuse.  Buffers that did not come
// from the pool are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) != DefaultBufSize {
		return
	}
	*buf = (*buf)[:DefaultBufSize]
	BufPool.Put(buf)
}
