package packet

import (
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf16"
)

// ============================================================================
// Field primitives - big-endian fixed width, UTF-16BE strings, short blobs
// ============================================================================

const (
	// MaxStringLength is the largest string, in UTF-16 code units, the codec
	// accepts or produces.
	MaxStringLength = math.MaxInt16

	// MaxBlobLength is the largest int16-prefixed byte array.
	MaxBlobLength = math.MaxInt16

	// MaxChunkDataLength bounds the compressed MapChunk payload.
	MaxChunkDataLength = 2 << 20
)

// errShort is internal: it is translated into ErrNeedMoreData by Decode.
var errShort = errors.New("short buffer")

// fieldReader reads fields from an in-memory buffer. The first failure is
// sticky; every later read returns a zero value.
type fieldReader struct {
	buf    []byte
	off    int
	packet string
	err    error
}

func (r *fieldReader) fail(field string, err error) {
	if r.err != nil {
		return
	}
	if err == errShort {
		r.err = errShort
		return
	}
	r.err = &MalformedFieldError{Packet: r.packet, Field: field, Err: err}
}

func (r *fieldReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = errShort
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *fieldReader) uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *fieldReader) int8() int8 {
	return int8(r.uint8())
}

func (r *fieldReader) bool() bool {
	return r.uint8() != 0
}

func (r *fieldReader) int16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

func (r *fieldReader) uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *fieldReader) int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *fieldReader) int64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *fieldReader) float32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func (r *fieldReader) float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// string reads a uint16 code-unit count followed by UTF-16BE code units.
func (r *fieldReader) string(field string) string {
	n := int(r.uint16())
	if r.err != nil {
		return ""
	}
	if n > MaxStringLength {
		r.fail(field, errTooLong)
		return ""
	}
	raw := r.take(2 * n)
	if raw == nil {
		return ""
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	if !validUTF16(units) {
		r.fail(field, errBadSurrogate)
		return ""
	}
	return string(utf16.Decode(units))
}

// blob reads an int16 length followed by raw bytes.
func (r *fieldReader) blob(field string) []byte {
	n := int(r.int16())
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.fail(field, errNegativeLength)
		return nil
	}
	raw := r.take(n)
	if raw == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, raw)
	return out
}

// sized reads n raw bytes whose length was sent earlier in the packet,
// bounded by limit.
func (r *fieldReader) sized(field string, n int32, limit int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.fail(field, errNegativeLength)
		return nil
	}
	if int(n) > limit {
		r.fail(field, errTooLong)
		return nil
	}
	raw := r.take(int(n))
	if raw == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, raw)
	return out
}

func validUTF16(units []uint16) bool {
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] >= 0xE000 {
				return false
			}
			i++
		case u >= 0xDC00 && u < 0xE000:
			return false
		}
	}
	return true
}

// fieldWriter appends fields to a byte slice. Like fieldReader, the first
// error is sticky.
type fieldWriter struct {
	buf    []byte
	packet string
	err    error
}

func (w *fieldWriter) fail(field string, err error) {
	if w.err == nil {
		w.err = &MalformedFieldError{Packet: w.packet, Field: field, Err: err}
	}
}

func (w *fieldWriter) uint8(v uint8) { w.buf = append(w.buf, v) }
func (w *fieldWriter) int8(v int8)   { w.buf = append(w.buf, byte(v)) }

func (w *fieldWriter) bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *fieldWriter) int16(v int16)   { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }
func (w *fieldWriter) uint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *fieldWriter) int32(v int32)   { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }
func (w *fieldWriter) int64(v int64)   { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }

func (w *fieldWriter) float32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *fieldWriter) float64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *fieldWriter) string(field, s string) {
	units := utf16.Encode([]rune(s))
	if len(units) > MaxStringLength {
		w.fail(field, errTooLong)
		return
	}
	w.uint16(uint16(len(units)))
	for _, u := range units {
		w.uint16(u)
	}
}

func (w *fieldWriter) blob(field string, b []byte) {
	if len(b) > MaxBlobLength {
		w.fail(field, errTooLong)
		return
	}
	w.int16(int16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *fieldWriter) raw(b []byte) { w.buf = append(w.buf, b...) }
