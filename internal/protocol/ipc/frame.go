// Package ipc is the wire format between the acceptor process and its
// isolated worker processes.
//
// Each message is one XDR-encoded Message carried in RPC record marking
// (RFC 5531 section 11): a record is a sequence of fragments, each prefixed
// by a 4-byte big-endian header whose high bit marks the last fragment and
// whose low 31 bits hold the fragment length.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Kind identifies the purpose of a message.
type Kind uint32

const (
	// KindInit is the first message sent to a worker; its body configures
	// the worker's store.
	KindInit Kind = iota + 1

	// KindReady acknowledges a successful init.
	KindReady

	// KindRequest carries one raw protocol request, terminator stripped.
	KindRequest

	// KindResponse carries one encoded protocol response, terminator included.
	KindResponse

	// KindError carries a failure message. A worker answers a request with
	// KindError when it could not produce a response at all.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindReady:
		return "ready"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Message is the unit exchanged over the pipe. Seq pairs a response with
// its request.
type Message struct {
	Kind Kind
	Seq  uint32
	Body []byte
}

const (
	lastFragmentBit = 0x80000000
	fragmentMask    = 0x7FFFFFFF

	// DefaultFragmentSize is the largest fragment written by WriteMessage.
	DefaultFragmentSize = 1 << 24
)

// ErrFrameTooLarge is returned when an incoming record exceeds the
// reader's limit.
var ErrFrameTooLarge = errors.New("ipc frame exceeds maximum size")

// WriteMessage encodes msg and writes it as one record.
func WriteMessage(w io.Writer, msg *Message) error {
	return writeMessage(w, msg, DefaultFragmentSize)
}

func writeMessage(w io.Writer, msg *Message, fragmentSize int) error {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, msg); err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Kind, err)
	}

	record := buf.Bytes()
	header := make([]byte, 4)
	for {
		n := min(len(record), fragmentSize)
		word := uint32(n)
		if n == len(record) {
			word |= lastFragmentBit
		}
		binary.BigEndian.PutUint32(header, word)

		if _, err := w.Write(header); err != nil {
			return fmt.Errorf("write fragment header: %w", err)
		}
		if _, err := w.Write(record[:n]); err != nil {
			return fmt.Errorf("write fragment: %w", err)
		}

		record = record[n:]
		if len(record) == 0 {
			return nil
		}
	}
}

// ReadMessage reads one record and decodes it. maxSize bounds the total
// record length; zero means unlimited.
//
// io.EOF is returned only when the stream ends cleanly between records.
func ReadMessage(r io.Reader, maxSize int) (*Message, error) {
	var record []byte
	header := make([]byte, 4)

	for first := true; ; first = false {
		if _, err := io.ReadFull(r, header); err != nil {
			if first && errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read fragment header: %w", noEOF(err))
		}

		word := binary.BigEndian.Uint32(header)
		length := int(word & fragmentMask)
		if maxSize > 0 && len(record)+length > maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(record)+length)
		}

		start := len(record)
		record = append(record, make([]byte, length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, fmt.Errorf("read fragment: %w", noEOF(err))
		}

		if word&lastFragmentBit != 0 {
			break
		}
	}

	msg := &Message{}
	if _, err := xdr.Unmarshal(bytes.NewReader(record), msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	// XDR decodes a zero-length opaque as nil; an empty body is still a body.
	if msg.Body == nil {
		msg.Body = []byte{}
	}
	return msg, nil
}

// noEOF turns a mid-record EOF into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
