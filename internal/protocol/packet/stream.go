package packet

import (
	"errors"
	"io"
)

const (
	readChunkSize = 4096

	// maxBuffered bounds how many undecoded bytes a Reader will hold. A
	// serverbound packet is never close to this size.
	maxBuffered = 1 << 20
)

var errBufferOverflow = errors.New("packet: undecoded input exceeds buffer limit")

// Reader decodes packets from a byte stream, resuming across short reads.
type Reader struct {
	src         io.Reader
	buf         []byte
	clientbound bool
}

// NewReader returns a Reader decoding serverbound packets from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, buf: make([]byte, 0, readChunkSize)}
}

// NewClientReader returns a Reader decoding clientbound packets from src.
func NewClientReader(src io.Reader) *Reader {
	r := NewReader(src)
	r.clientbound = true
	return r
}

// Buffered reports how many bytes are held but not yet decoded.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Next returns the next packet legal under filter.
//
// It returns io.EOF when the stream ends on a packet boundary and
// ErrTruncatedStream when it ends inside a packet. Other read errors are
// returned unchanged so the caller can recognise timeouts.
func (r *Reader) Next(filter Filter) (Packet, error) {
	for {
		if len(r.buf) > 0 {
			p, n, err := r.decode(filter)
			if err == nil {
				r.buf = r.buf[:copy(r.buf, r.buf[n:])]
				return p, nil
			}
			if err != ErrNeedMoreData {
				return nil, err
			}
			if len(r.buf) >= maxBuffered {
				return nil, &MalformedFieldError{Packet: ID(r.buf[0]).String(), Field: "length", Err: errBufferOverflow}
			}
		}

		if err := r.fill(); err != nil {
			if errors.Is(err, io.EOF) {
				if len(r.buf) > 0 {
					return nil, ErrTruncatedStream
				}
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

func (r *Reader) decode(filter Filter) (Packet, int, error) {
	if r.clientbound {
		return DecodeClientbound(r.buf)
	}
	return Decode(r.buf, filter)
}

func (r *Reader) fill() error {
	if cap(r.buf)-len(r.buf) < readChunkSize {
		grown := make([]byte, len(r.buf), 2*cap(r.buf)+readChunkSize)
		copy(grown, r.buf)
		r.buf = grown
	}
	n, err := r.src.Read(r.buf[len(r.buf):cap(r.buf)])
	r.buf = r.buf[:len(r.buf)+n]
	if n > 0 || err == nil {
		return nil
	}
	return err
}
