package xfer

import (
	"sync"
)

// ============================================================================
// Buffer Pool for Connection Reads
// ============================================================================
//
// Every connection reads into a chunk buffer whose size is configurable
// (1MB by default). Buffers are recycled through size-classed pools so that
// short-lived connections do not allocate a fresh megabyte each.

const (
	smallBufferSize  = 4 << 10  // 4KB
	mediumBufferSize = 64 << 10 // 64KB
	largeBufferSize  = 1 << 20  // 1MB
)

type bufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

func newSizedPool(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

var globalBufferPool = &bufferPool{
	small:  newSizedPool(smallBufferSize),
	medium: newSizedPool(mediumBufferSize),
	large:  newSizedPool(largeBufferSize),
}

// Get returns a slice of exactly size bytes. Sizes above the largest class
// are allocated directly and are not pooled.
func (p *bufferPool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= smallBufferSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= mediumBufferSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= largeBufferSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get. Buffers whose capacity does not
// match a size class are left to the garbage collector.
func (p *bufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}

	full := buf[:cap(buf)]
	switch cap(buf) {
	case smallBufferSize:
		p.small.Put(&full)
	case mediumBufferSize:
		p.medium.Put(&full)
	case largeBufferSize:
		p.large.Put(&full)
	}
}

// GetBuffer acquires a read buffer of the given size from the shared pool.
//
// Usage:
//
//	buf := GetBuffer(size)
//	defer PutBuffer(buf)
func GetBuffer(size int) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer to the shared pool.
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}
