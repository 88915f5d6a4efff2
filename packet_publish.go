package mqtt5

import "errors"

// PUBLISH errors.
var (
	ErrInvalidQoS       = errors.New("invalid QoS level")
	ErrPacketIDRequired = errors.New("packet identifier required for QoS > 0")
)

// PublishPacket carries an application message.
type PublishPacket struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retain   bool
	DUP      bool
	PacketID uint16
	Props    Properties
}

func (p *PublishPacket) Type() PacketType { return PacketPUBLISH }

func (p *PublishPacket) flags() byte {
	f := (p.QoS << 1) & flagQoS
	if p.DUP {
		f |= flagDUP
	}
	if p.Retain {
		f |= flagRetain
	}
	return f
}

func (p *PublishPacket) appendBody(b []byte) ([]byte, error) {
	if p.QoS > 2 {
		return b, ErrInvalidQoS
	}
	if p.QoS > 0 && p.PacketID == 0 {
		return b, ErrPacketIDRequired
	}
	var err error
	if b, err = appendString(b, p.Topic); err != nil {
		return b, err
	}
	if p.QoS > 0 {
		b = appendUint16(b, p.PacketID)
	}
	if b, err = appendProperties(b, &p.Props); err != nil {
		return b, err
	}
	return append(b, p.Payload...), nil
}

func (p *PublishPacket) decodeBody(r *reader, flags byte) {
	p.QoS = (flags & flagQoS) >> 1
	p.DUP = flags&flagDUP != 0
	p.Retain = flags&flagRetain != 0
	p.Topic = r.string("topic name")
	if p.QoS > 0 {
		p.PacketID = r.uint16("packet identifier")
		if r.err == nil && p.PacketID == 0 {
			r.fail("PUBLISH qos %d without packet identifier", p.QoS)
			return
		}
	}
	p.Props = readProperties(r)
	p.Payload = r.rest()
}

// PubackPacket acknowledges a QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubackPacket) Type() PacketType { return PacketPUBACK }
func (p *PubackPacket) flags() byte      { return 0 }

func (p *PubackPacket) appendBody(b []byte) ([]byte, error) {
	return appendPubResponse(b, p.PacketID, p.ReasonCode, &p.Props)
}

func (p *PubackPacket) decodeBody(r *reader, _ byte) {
	p.PacketID, p.ReasonCode, p.Props = readPubResponse(r, inPuback)
}

// PubrecPacket is the first reply to a QoS 2 PUBLISH.
type PubrecPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }
func (p *PubrecPacket) flags() byte      { return 0 }

func (p *PubrecPacket) appendBody(b []byte) ([]byte, error) {
	return appendPubResponse(b, p.PacketID, p.ReasonCode, &p.Props)
}

func (p *PubrecPacket) decodeBody(r *reader, _ byte) {
	p.PacketID, p.ReasonCode, p.Props = readPubResponse(r, inPubrec)
}

// PubrelPacket releases a QoS 2 message after PUBREC.
type PubrelPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }
func (p *PubrelPacket) flags() byte      { return flagsReserved }

func (p *PubrelPacket) appendBody(b []byte) ([]byte, error) {
	return appendPubResponse(b, p.PacketID, p.ReasonCode, &p.Props)
}

func (p *PubrelPacket) decodeBody(r *reader, _ byte) {
	p.PacketID, p.ReasonCode, p.Props = readPubResponse(r, inPubrel)
}

// PubcompPacket completes a QoS 2 exchange.
type PubcompPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }
func (p *PubcompPacket) flags() byte      { return 0 }

func (p *PubcompPacket) appendBody(b []byte) ([]byte, error) {
	return appendPubResponse(b, p.PacketID, p.ReasonCode, &p.Props)
}

func (p *PubcompPacket) decodeBody(r *reader, _ byte) {
	p.PacketID, p.ReasonCode, p.Props = readPubResponse(r, inPubcomp)
}

// appendPubResponse writes the shared PUBACK/PUBREC/PUBREL/PUBCOMP body,
// using the short forms when reason and properties allow it.
func appendPubResponse(b []byte, id uint16, rc ReasonCode, props *Properties) ([]byte, error) {
	if id == 0 {
		return b, ErrPacketIDRequired
	}
	b = appendUint16(b, id)
	if props.Len() == 0 {
		if rc == ReasonSuccess {
			return b, nil
		}
		return append(b, byte(rc)), nil
	}
	b = append(b, byte(rc))
	return appendProperties(b, props)
}

func readPubResponse(r *reader, in uint16) (uint16, ReasonCode, Properties) {
	id := r.uint16("packet identifier")
	if r.err == nil && id == 0 {
		r.fail("zero packet identifier")
	}
	if r.err != nil || r.len() == 0 {
		return id, ReasonSuccess, Properties{}
	}
	rc := ReasonCode(r.uint8("reason code"))
	if r.err == nil && !rc.validIn(in) {
		r.fail("unexpected reason %s", rc)
	}
	if r.err != nil || r.len() == 0 {
		return id, rc, Properties{}
	}
	return id, rc, readProperties(r)
}
