package mqtt5

import "errors"

// ErrNoTopics is returned for SUBSCRIBE or UNSUBSCRIBE without topic filters.
var ErrNoTopics = errors.New("at least one topic filter is required")

// RetainHandling selects when retained messages are sent for a new
// subscription.
type RetainHandling byte

const (
	// SendRetainedAlways sends retained messages at every subscribe.
	SendRetainedAlways RetainHandling = 0
	// SendRetainedIfNew sends retained messages only for new subscriptions.
	SendRetainedIfNew RetainHandling = 1
	// SendRetainedNever never sends retained messages.
	SendRetainedNever RetainHandling = 2
)

// Subscription is one topic filter with its subscription options.
type Subscription struct {
	Filter            string
	QoS               byte
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    RetainHandling
}

func (s Subscription) options() byte {
	o := s.QoS & 0x03
	if s.NoLocal {
		o |= 0x04
	}
	if s.RetainAsPublished {
		o |= 0x08
	}
	return o | byte(s.RetainHandling&0x03)<<4
}

// SubscribePacket requests one or more subscriptions.
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
	Props         Properties
}

func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }
func (p *SubscribePacket) flags() byte      { return flagsReserved }

func (p *SubscribePacket) appendBody(b []byte) ([]byte, error) {
	if p.PacketID == 0 {
		return b, ErrPacketIDRequired
	}
	if len(p.Subscriptions) == 0 {
		return b, ErrNoTopics
	}
	b = appendUint16(b, p.PacketID)
	var err error
	if b, err = appendProperties(b, &p.Props); err != nil {
		return b, err
	}
	for _, s := range p.Subscriptions {
		if s.QoS > 2 {
			return b, ErrInvalidQoS
		}
		if b, err = appendString(b, s.Filter); err != nil {
			return b, err
		}
		b = append(b, s.options())
	}
	return b, nil
}

func (p *SubscribePacket) decodeBody(r *reader, _ byte) {
	p.PacketID = r.uint16("packet identifier")
	p.Props = readProperties(r)
	for r.err == nil && r.len() > 0 {
		filter := r.string("topic filter")
		o := r.uint8("subscription options")
		if r.err == nil && (o&0xC0 != 0 || o&0x03 == 0x03 || (o>>4)&0x03 == 0x03) {
			r.fail("subscription options 0x%02X", o)
		}
		p.Subscriptions = append(p.Subscriptions, Subscription{
			Filter:            filter,
			QoS:               o & 0x03,
			NoLocal:           o&0x04 != 0,
			RetainAsPublished: o&0x08 != 0,
			RetainHandling:    RetainHandling((o >> 4) & 0x03),
		})
	}
	if r.err == nil && len(p.Subscriptions) == 0 {
		r.fail("SUBSCRIBE without topic filters")
	}
}

// SubackPacket answers a SUBSCRIBE with one reason code per filter.
type SubackPacket struct {
	PacketID    uint16
	ReasonCodes []ReasonCode
	Props       Properties
}

func (p *SubackPacket) Type() PacketType { return PacketSUBACK }
func (p *SubackPacket) flags() byte      { return 0 }

func (p *SubackPacket) appendBody(b []byte) ([]byte, error) {
	return appendAckList(b, p.PacketID, p.ReasonCodes, &p.Props)
}

func (p *SubackPacket) decodeBody(r *reader, _ byte) {
	p.PacketID, p.ReasonCodes, p.Props = readAckList(r, inSuback)
}

// UnsubscribePacket removes one or more subscriptions.
type UnsubscribePacket struct {
	PacketID uint16
	Filters  []string
	Props    Properties
}

func (p *UnsubscribePacket) Type() PacketType { return PacketUNSUBSCRIBE }
func (p *UnsubscribePacket) flags() byte      { return flagsReserved }

func (p *UnsubscribePacket) appendBody(b []byte) ([]byte, error) {
	if p.PacketID == 0 {
		return b, ErrPacketIDRequired
	}
	if len(p.Filters) == 0 {
		return b, ErrNoTopics
	}
	b = appendUint16(b, p.PacketID)
	var err error
	if b, err = appendProperties(b, &p.Props); err != nil {
		return b, err
	}
	for _, f := range p.Filters {
		if b, err = appendString(b, f); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (p *UnsubscribePacket) decodeBody(r *reader, _ byte) {
	p.PacketID = r.uint16("packet identifier")
	p.Props = readProperties(r)
	for r.err == nil && r.len() > 0 {
		p.Filters = append(p.Filters, r.string("topic filter"))
	}
	if r.err == nil && len(p.Filters) == 0 {
		r.fail("UNSUBSCRIBE without topic filters")
	}
}

// UnsubackPacket answers an UNSUBSCRIBE with one reason code per filter.
type UnsubackPacket struct {
	PacketID    uint16
	ReasonCodes []ReasonCode
	Props       Properties
}

func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }
func (p *UnsubackPacket) flags() byte      { return 0 }

func (p *UnsubackPacket) appendBody(b []byte) ([]byte, error) {
	return appendAckList(b, p.PacketID, p.ReasonCodes, &p.Props)
}

func (p *UnsubackPacket) decodeBody(r *reader, _ byte) {
	p.PacketID, p.ReasonCodes, p.Props = readAckList(r, inUnsuback)
}

func appendAckList(b []byte, id uint16, codes []ReasonCode, props *Properties) ([]byte, error) {
	if id == 0 {
		return b, ErrPacketIDRequired
	}
	b = appendUint16(b, id)
	b, err := appendProperties(b, props)
	if err != nil {
		return b, err
	}
	for _, rc := range codes {
		b = append(b, byte(rc))
	}
	return b, nil
}

func readAckList(r *reader, in uint16) (uint16, []ReasonCode, Properties) {
	id := r.uint16("packet identifier")
	props := readProperties(r)
	var codes []ReasonCode
	for r.err == nil && r.len() > 0 {
		rc := ReasonCode(r.uint8("reason code"))
		if !rc.validIn(in) {
			r.fail("unexpected reason %s", rc)
			break
		}
		codes = append(codes, rc)
	}
	return id, codes, props
}
