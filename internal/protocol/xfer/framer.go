package xfer

import (
	"bytes"
	"errors"
	"iter"
)

// Terminator ends every request and every response on the wire.
const Terminator = "\r\n\r\n"

var terminator = []byte(Terminator)

// ErrRequestTooLarge is returned by Feed when a request grows past the
// framer's size limit without a terminator. The stream cannot be
// resynchronized after this error.
var ErrRequestTooLarge = errors.New("request exceeds maximum size")

// releaseThreshold is the buffer capacity above which an emptied buffer is
// dropped instead of reused, so one large upload does not pin its memory
// for the rest of the connection.
const releaseThreshold = 4 << 20

// Framer rebuilds discrete requests from a byte stream.
//
// Bytes are appended with Feed in whatever chunks the transport delivers.
// Terminators are located incrementally, so a multi-megabyte request fed in
// small chunks is scanned once, and a terminator split across two chunks is
// still found. Complete requests are returned in arrival order by Next or
// Requests; a trailing partial request stays buffered until more bytes arrive.
//
// A Framer is owned by a single connection and is not safe for concurrent use.
type Framer struct {
	buf []byte

	// start is the first byte not yet returned by Next.
	start int

	// tail is the start of the request currently being accumulated, i.e.
	// the byte after the last terminator found.
	tail int

	// scanned marks how far the terminator search has progressed. Bytes
	// before it cannot begin a terminator that is not already in ends.
	scanned int

	// ends holds the offsets of terminators found but not yet consumed.
	ends []int

	maxSize int
}

// NewFramer returns a framer that rejects requests larger than maxSize
// bytes. A maxSize of zero or less disables the limit.
func NewFramer(maxSize int) *Framer {
	return &Framer{maxSize: maxSize}
}

// Feed appends chunk to the buffer and locates any terminators it completes.
//
// If a request exceeds the size limit, Feed returns ErrRequestTooLarge.
// Requests completed before the oversized one remain available from Next.
func (f *Framer) Feed(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	f.compact()
	f.buf = append(f.buf, chunk...)

	for {
		i := bytes.Index(f.buf[f.scanned:], terminator)
		if i < 0 {
			f.scanned = max(f.tail, len(f.buf)-len(terminator)+1)
			break
		}

		end := f.scanned + i
		if f.tooLarge(end - f.tail) {
			return ErrRequestTooLarge
		}
		f.ends = append(f.ends, end)
		f.tail = end + len(terminator)
		f.scanned = f.tail
	}

	if f.tooLarge(len(f.buf) - f.tail) {
		return ErrRequestTooLarge
	}
	return nil
}

func (f *Framer) tooLarge(n int) bool {
	return f.maxSize > 0 && n > f.maxSize
}

// Next returns the next complete request without its terminator. The
// returned slice is a copy and stays valid after further calls.
func (f *Framer) Next() ([]byte, bool) {
	if len(f.ends) == 0 {
		return nil, false
	}

	end := f.ends[0]
	f.ends = f.ends[1:]

	req := make([]byte, end-f.start)
	copy(req, f.buf[f.start:end])
	f.start = end + len(terminator)

	return req, true
}

// Requests yields every complete request currently buffered. It may be
// ranged over again after the next Feed.
func (f *Framer) Requests() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			req, ok := f.Next()
			if !ok || !yield(req) {
				return
			}
		}
	}
}

// Pending returns the number of buffered bytes not yet returned by Next,
// including complete requests that are still queued.
func (f *Framer) Pending() int {
	return len(f.buf) - f.start
}

// compact discards consumed bytes ahead of an append.
func (f *Framer) compact() {
	if f.start == 0 {
		return
	}

	if f.start == len(f.buf) {
		if cap(f.buf) > releaseThreshold {
			f.buf = nil
		} else {
			f.buf = f.buf[:0]
		}
		f.start, f.tail, f.scanned = 0, 0, 0
		f.ends = f.ends[:0]
		return
	}

	shift := f.start
	n := copy(f.buf, f.buf[shift:])
	f.buf = f.buf[:n]
	f.start = 0
	f.tail -= shift
	f.scanned -= shift
	for i := range f.ends {
		f.ends[i] -= shift
	}
}

// AppendTerminator appends the wire terminator to payload.
func AppendTerminator(payload []byte) []byte {
	return append(payload, terminator...)
}
