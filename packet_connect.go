package mqtt5

import "errors"

const (
	protocolName    = "MQTT"
	protocolVersion = 5
)

// ErrUnsupportedProtocol is returned when decoding a CONNECT for another
// protocol name or version.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// CONNECT flag bits.
const (
	connectCleanStart   = 0x02
	connectWill         = 0x04
	connectWillRetain   = 0x20
	connectPassword     = 0x40
	connectUsername     = 0x80
	connectWillQoSShift = 3
)

// ConnectPacket opens a session.
type ConnectPacket struct {
	ClientID   string
	Username   string
	Password   []byte
	KeepAlive  uint16
	CleanStart bool
	Will       *Will
	Props      Properties
}

func (p *ConnectPacket) Type() PacketType { return PacketCONNECT }
func (p *ConnectPacket) flags() byte      { return 0 }

func (p *ConnectPacket) appendBody(b []byte) ([]byte, error) {
	var flags byte
	if p.CleanStart {
		flags |= connectCleanStart
	}
	if p.Will != nil {
		if p.Will.QoS > 2 {
			return b, ErrInvalidQoS
		}
		flags |= connectWill | p.Will.QoS<<connectWillQoSShift
		if p.Will.Retain {
			flags |= connectWillRetain
		}
	}
	if p.Username != "" {
		flags |= connectUsername
	}
	if p.Password != nil {
		flags |= connectPassword
	}

	b, _ = appendString(b, protocolName)
	b = append(b, protocolVersion, flags)
	b = appendUint16(b, p.KeepAlive)

	var err error
	if b, err = appendProperties(b, &p.Props); err != nil {
		return b, err
	}
	if b, err = appendString(b, p.ClientID); err != nil {
		return b, err
	}
	if p.Will != nil {
		if b, err = appendProperties(b, &p.Will.Props); err != nil {
			return b, err
		}
		if b, err = appendString(b, p.Will.Topic); err != nil {
			return b, err
		}
		if b, err = appendBinary(b, p.Will.Payload); err != nil {
			return b, err
		}
	}
	if p.Username != "" {
		if b, err = appendString(b, p.Username); err != nil {
			return b, err
		}
	}
	if p.Password != nil {
		if b, err = appendBinary(b, p.Password); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (p *ConnectPacket) decodeBody(r *reader, _ byte) {
	name := r.string("protocol name")
	version := r.uint8("protocol version")
	if r.err == nil && (name != protocolName || version != protocolVersion) {
		r.err = ErrUnsupportedProtocol
		return
	}
	flags := r.uint8("connect flags")
	if flags&0x01 != 0 {
		r.fail("reserved connect flag set")
		return
	}
	p.CleanStart = flags&connectCleanStart != 0
	p.KeepAlive = r.uint16("keep alive")
	p.Props = readProperties(r)
	p.ClientID = r.string("client identifier")
	if flags&connectWill != 0 {
		w := &Will{
			QoS:    (flags >> connectWillQoSShift) & 0x03,
			Retain: flags&connectWillRetain != 0,
		}
		w.Props = readProperties(r)
		w.Topic = r.string("will topic")
		w.Payload = r.binary("will payload")
		p.Will = w
	}
	if flags&connectUsername != 0 {
		p.Username = r.string("user name")
	}
	if flags&connectPassword != 0 {
		p.Password = r.binary("password")
		if p.Password == nil {
			p.Password = []byte{}
		}
	}
}

// ConnackPacket answers a CONNECT.
type ConnackPacket struct {
	SessionPresent bool
	ReasonCode     ReasonCode
	Props          Properties
}

func (p *ConnackPacket) Type() PacketType { return PacketCONNACK }
func (p *ConnackPacket) flags() byte      { return 0 }

func (p *ConnackPacket) appendBody(b []byte) ([]byte, error) {
	var ack byte
	if p.SessionPresent {
		ack = 1
	}
	b = append(b, ack, byte(p.ReasonCode))
	return appendProperties(b, &p.Props)
}

func (p *ConnackPacket) decodeBody(r *reader, _ byte) {
	ack := r.uint8("acknowledge flags")
	if ack&^0x01 != 0 {
		r.fail("reserved acknowledge flags set")
		return
	}
	p.SessionPresent = ack == 1
	p.ReasonCode = ReasonCode(r.uint8("reason code"))
	if r.err == nil && !p.ReasonCode.validIn(inConnack) {
		r.fail("CONNACK reason %s", p.ReasonCode)
		return
	}
	p.Props = readProperties(r)
}
