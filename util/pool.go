package util

import "sync"

// bufPool holds DefaultBufSize buffers for the relay copy loops.
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf takes a buffer from the pool.  Hand it back with [PutBuf].
func GetBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

// PutBuf returns buf to the pool.  A nil buf is ignored.
func PutBuf(buf *[]byte) {
	if buf != nil {
		bufPool.Put(buf)
	}
}
