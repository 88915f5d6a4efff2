package mqtt5

import (
	"errors"
	"fmt"
	"io"
)

// Codec errors.
var (
	ErrPacketTooLarge    = errors.New("packet exceeds maximum size")
	ErrUnknownPacketType = errors.New("unknown packet type")
	ErrIncompletePacket  = errors.New("incomplete packet")
)

// Encode serializes p including its fixed header.
func Encode(p Packet) ([]byte, error) {
	body, err := p.appendBody(make([]byte, 0, 64))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Type(), err)
	}
	out := make([]byte, 0, 1+varintSize(uint32(len(body)))+len(body))
	out = append(out, byte(p.Type())<<4|p.flags())
	if out, err = appendVarint(out, uint32(len(body))); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Type(), ErrPacketTooLarge)
	}
	return append(out, body...), nil
}

// Decode parses one packet from the start of b and returns it with the number
// of bytes consumed. ErrIncompletePacket means b holds only a prefix.
func Decode(b []byte) (Packet, int, error) {
	if len(b) < 2 {
		return nil, 0, ErrIncompletePacket
	}
	var length uint32
	hdr := 1
	for i := 0; ; i++ {
		if i == 4 {
			return nil, 0, fmt.Errorf("%w: remaining length longer than 4 bytes", ErrMalformedPacket)
		}
		if hdr >= len(b) {
			return nil, 0, ErrIncompletePacket
		}
		digit := b[hdr]
		hdr++
		length |= uint32(digit&0x7F) << (7 * i)
		if digit&0x80 == 0 {
			break
		}
	}
	total := hdr + int(length)
	if len(b) < total {
		return nil, 0, ErrIncompletePacket
	}
	p, err := decodePacket(b[0], b[hdr:total])
	if err != nil {
		return nil, 0, err
	}
	return p, total, nil
}

// ReadPacket reads exactly one packet from r. A positive maxSize bounds the
// whole packet length.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, error) {
	var one [1]byte
	if _, err := io.ReadFull(r, one[:]); err != nil {
		return nil, err
	}
	first := one[0]

	var length uint32
	for i := 0; ; i++ {
		if i == 4 {
			return nil, fmt.Errorf("%w: remaining length longer than 4 bytes", ErrMalformedPacket)
		}
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return nil, err
		}
		length |= uint32(one[0]&0x7F) << (7 * i)
		if one[0]&0x80 == 0 {
			break
		}
	}
	if maxSize > 0 && 1+uint32(varintSize(length))+length > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return decodePacket(first, body)
}

// WritePacket encodes p and writes it to w in a single call.
func WritePacket(w io.Writer, p Packet) error {
	b, err := Encode(p)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func decodePacket(first byte, body []byte) (Packet, error) {
	t := PacketType(first >> 4)
	flags := first & 0x0F
	if t < PacketCONNECT || t > PacketAUTH {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPacketType, byte(t))
	}
	if err := checkFlags(t, flags); err != nil {
		return nil, err
	}
	p, err := newPacket(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, t)
	}
	r := newReader(body)
	p.decodeBody(r, flags)
	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, r.err)
	}
	if r.len() != 0 {
		return nil, fmt.Errorf("decode %s: %w: %d trailing bytes", t, ErrMalformedPacket, r.len())
	}
	return p, nil
}
