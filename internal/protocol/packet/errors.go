package packet

import (
	"errors"
	"fmt"
)

// ErrNeedMoreData is returned by Decode when the buffer holds a valid prefix
// of a packet but not the whole packet. The caller should read more bytes
// and retry with the extended buffer; nothing has been consumed.
var ErrNeedMoreData = errors.New("packet: need more data")

// ErrTruncatedStream is returned by Reader when the underlying stream ends
// in the middle of a packet.
var ErrTruncatedStream = errors.New("packet: stream truncated mid-packet")

// InvalidPacketIDError reports an identifier that cannot be decoded in the
// current protocol state.
//
// Known is true when the identifier belongs to the serverbound catalog but is
// not legal in the state the decoder was asked to use. Callers use it to tell
// a protocol violation (right packet, wrong time) from garbage on the wire.
type InvalidPacketIDError struct {
	ID    ID
	Known bool
}

func (e *InvalidPacketIDError) Error() string {
	if e.Known {
		return fmt.Sprintf("packet 0x%02X (%s) not allowed in current state", byte(e.ID), e.ID)
	}
	return fmt.Sprintf("invalid packet id 0x%02X", byte(e.ID))
}

// MalformedFieldError reports a field whose bytes are present but cannot be
// interpreted (negative length, unpaired surrogate, oversized blob, ...).
type MalformedFieldError struct {
	Packet string
	Field  string
	Err    error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed %s.%s: %v", e.Packet, e.Field, e.Err)
}

func (e *MalformedFieldError) Unwrap() error {
	return e.Err
}

var (
	errNegativeLength = errors.New("negative length")
	errTooLong        = errors.New("length exceeds limit")
	errBadSurrogate   = errors.New("invalid UTF-16 surrogate sequence")
	errBadMetadata    = errors.New("unknown metadata type")
)

// IsMalformed reports whether err is a codec-level framing or field error,
// which always terminates the session.
func IsMalformed(err error) bool {
	var idErr *InvalidPacketIDError
	if errors.As(err, &idErr) {
		return !idErr.Known
	}
	var fieldErr *MalformedFieldError
	return errors.As(err, &fieldErr) || errors.Is(err, ErrTruncatedStream)
}

// IsViolation reports whether err is a known packet decoded in a state that
// does not allow it.
func IsViolation(err error) bool {
	var idErr *InvalidPacketIDError
	return errors.As(err, &idErr) && idErr.Known
}
