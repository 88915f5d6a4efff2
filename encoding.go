package mqtt5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Encoding errors.
var (
	ErrStringTooLong      = errors.New("string exceeds maximum length of 65535 bytes")
	ErrBinaryTooLong      = errors.New("binary data exceeds maximum length of 65535 bytes")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 string")
	ErrStringContainsNull = errors.New("string contains null character")
	ErrVarintTooLarge     = errors.New("variable byte integer exceeds maximum value")
	ErrMalformedPacket    = errors.New("malformed packet")
)

const (
	maxUint16 = 65535
	maxVarint = 268435455
)

// StringPair is a UTF-8 name/value pair, used by user properties.
type StringPair struct {
	Key   string
	Value string
}

func validString(s string) error {
	if len(s) > maxUint16 {
		return ErrStringTooLong
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return ErrStringContainsNull
		}
	}
	return nil
}

func appendUint16(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

func appendString(b []byte, s string) ([]byte, error) {
	if err := validString(s); err != nil {
		return b, err
	}
	b = appendUint16(b, uint16(len(s)))
	return append(b, s...), nil
}

func appendBinary(b []byte, data []byte) ([]byte, error) {
	if len(data) > maxUint16 {
		return b, ErrBinaryTooLong
	}
	b = appendUint16(b, uint16(len(data)))
	return append(b, data...), nil
}

func appendVarint(b []byte, v uint32) ([]byte, error) {
	if v > maxVarint {
		return b, ErrVarintTooLarge
	}
	for {
		digit := byte(v & 0x7F)
		v >>= 7
		if v > 0 {
			digit |= 0x80
		}
		b = append(b, digit)
		if v == 0 {
			return b, nil
		}
	}
}

// varintSize returns the encoded length of v.
func varintSize(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	default:
		return 4
	}
}

// reader decodes primitives from a packet body. The first failure sticks:
// later calls return zero values and err keeps the original cause.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformedPacket}, args...)...)
	}
}

func (r *reader) need(n int, what string) bool {
	if r.err != nil {
		return false
	}
	if len(r.buf)-r.off < n {
		r.fail("short %s", what)
		return false
	}
	return true
}

func (r *reader) len() int {
	return len(r.buf) - r.off
}

func (r *reader) uint8(what string) byte {
	if !r.need(1, what) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) uint16(what string) uint16 {
	if !r.need(2, what) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) uint32(what string) uint32 {
	if !r.need(4, what) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) varint(what string) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		digit := r.uint8(what)
		if r.err != nil {
			return 0
		}
		v |= uint32(digit&0x7F) << (7 * i)
		if digit&0x80 == 0 {
			return v
		}
	}
	r.fail("%s: variable byte integer longer than 4 bytes", what)
	return 0
}

func (r *reader) binary(what string) []byte {
	n := int(r.uint16(what))
	if !r.need(n, what) {
		return nil
	}
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += n
	return out
}

func (r *reader) string(what string) string {
	n := int(r.uint16(what))
	if !r.need(n, what) {
		return ""
	}
	s := string(r.buf[r.off : r.off+n])
	r.off += n
	if err := validString(s); err != nil {
		r.fail("%s: %v", what, err)
		return ""
	}
	return s
}

func (r *reader) rest() []byte {
	if r.err != nil || r.len() == 0 {
		return nil
	}
	out := make([]byte, r.len())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

// sub returns a reader over the next n bytes and advances past them.
func (r *reader) sub(n int, what string) *reader {
	if !r.need(n, what) {
		return &reader{err: r.err}
	}
	s := newReader(r.buf[r.off : r.off+n])
	r.off += n
	return s
}
