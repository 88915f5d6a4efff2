package mqtt5

import (
	"errors"
	"fmt"
)

// PropertyID identifies an MQTT v5 property.
type PropertyID byte

// Property identifiers.
const (
	PropPayloadFormatIndicator   PropertyID = 0x01
	PropMessageExpiryInterval    PropertyID = 0x02
	PropContentType              PropertyID = 0x03
	PropResponseTopic            PropertyID = 0x08
	PropCorrelationData          PropertyID = 0x09
	PropSubscriptionIdentifier   PropertyID = 0x0B
	PropSessionExpiryInterval    PropertyID = 0x11
	PropAssignedClientIdentifier PropertyID = 0x12
	PropServerKeepAlive          PropertyID = 0x13
	PropAuthenticationMethod     PropertyID = 0x15
	PropAuthenticationData       PropertyID = 0x16
	PropRequestProblemInfo       PropertyID = 0x17
	PropWillDelayInterval        PropertyID = 0x18
	PropRequestResponseInfo      PropertyID = 0x19
	PropResponseInformation      PropertyID = 0x1A
	PropServerReference          PropertyID = 0x1C
	PropReasonString             PropertyID = 0x1F
	PropReceiveMaximum           PropertyID = 0x21
	PropTopicAliasMaximum        PropertyID = 0x22
	PropTopicAlias               PropertyID = 0x23
	PropMaximumQoS               PropertyID = 0x24
	PropRetainAvailable          PropertyID = 0x25
	PropUserProperty             PropertyID = 0x26
	PropMaximumPacketSize        PropertyID = 0x27
	PropWildcardSubAvailable     PropertyID = 0x28
	PropSubscriptionIDAvailable  PropertyID = 0x29
	PropSharedSubAvailable       PropertyID = 0x2A
)

type propKind byte

const (
	kindByte propKind = iota + 1
	kindUint16
	kindUint32
	kindVarint
	kindString
	kindBinary
	kindPair
)

var propKinds = map[PropertyID]propKind{
	PropPayloadFormatIndicator:   kindByte,
	PropMessageExpiryInterval:    kindUint32,
	PropContentType:              kindString,
	PropResponseTopic:            kindString,
	PropCorrelationData:          kindBinary,
	PropSubscriptionIdentifier:   kindVarint,
	PropSessionExpiryInterval:    kindUint32,
	PropAssignedClientIdentifier: kindString,
	PropServerKeepAlive:          kindUint16,
	PropAuthenticationMethod:     kindString,
	PropAuthenticationData:       kindBinary,
	PropRequestProblemInfo:       kindByte,
	PropWillDelayInterval:        kindUint32,
	PropRequestResponseInfo:      kindByte,
	PropResponseInformation:      kindString,
	PropServerReference:          kindString,
	PropReasonString:             kindString,
	PropReceiveMaximum:           kindUint16,
	PropTopicAliasMaximum:        kindUint16,
	PropTopicAlias:               kindUint16,
	PropMaximumQoS:               kindByte,
	PropRetainAvailable:          kindByte,
	PropUserProperty:             kindPair,
	PropMaximumPacketSize:        kindUint32,
	PropWildcardSubAvailable:     kindByte,
	PropSubscriptionIDAvailable:  kindByte,
	PropSharedSubAvailable:       kindByte,
}

// Property errors.
var (
	ErrUnknownPropertyID   = errors.New("unknown property identifier")
	ErrInvalidPropertyType = errors.New("invalid property value type")
)

// Property is a single identifier/value entry. Value holds a byte, uint16,
// uint32 (four byte and variable byte integers), string, []byte or StringPair
// depending on the identifier.
type Property struct {
	ID    PropertyID
	Value any
}

// Properties is an ordered property list. The zero value is empty and ready
// to use.
type Properties struct {
	list []Property
}

// Len returns the number of entries.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}

// All returns the entries in wire order.
func (p *Properties) All() []Property {
	if p == nil {
		return nil
	}
	return p.list
}

// Has reports whether id is present.
func (p *Properties) Has(id PropertyID) bool {
	return p.Get(id) != nil
}

// Get returns the first value for id, or nil.
func (p *Properties) Get(id PropertyID) any {
	if p == nil {
		return nil
	}
	for _, e := range p.list {
		if e.ID == id {
			return e.Value
		}
	}
	return nil
}

// Set replaces the value for id, adding it if absent.
func (p *Properties) Set(id PropertyID, value any) {
	for i := range p.list {
		if p.list[i].ID == id {
			p.list[i].Value = value
			return
		}
	}
	p.list = append(p.list, Property{ID: id, Value: value})
}

// Add appends a value. Used for repeatable properties such as user
// properties and subscription identifiers.
func (p *Properties) Add(id PropertyID, value any) {
	p.list = append(p.list, Property{ID: id, Value: value})
}

// Delete removes every entry for id.
func (p *Properties) Delete(id PropertyID) {
	kept := p.list[:0]
	for _, e := range p.list {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	p.list = kept
}

// GetByte returns a byte property, or 0.
func (p *Properties) GetByte(id PropertyID) byte {
	v, _ := p.Get(id).(byte)
	return v
}

// GetUint16 returns a two byte integer property, or 0.
func (p *Properties) GetUint16(id PropertyID) uint16 {
	v, _ := p.Get(id).(uint16)
	return v
}

// GetUint32 returns a four byte or variable byte integer property, or 0.
func (p *Properties) GetUint32(id PropertyID) uint32 {
	v, _ := p.Get(id).(uint32)
	return v
}

// GetString returns a string property, or "".
func (p *Properties) GetString(id PropertyID) string {
	v, _ := p.Get(id).(string)
	return v
}

// GetBinary returns a binary property, or nil.
func (p *Properties) GetBinary(id PropertyID) []byte {
	v, _ := p.Get(id).([]byte)
	return v
}

// UserProperties returns every user property in order.
func (p *Properties) UserProperties() []StringPair {
	var out []StringPair
	for _, e := range p.All() {
		if pair, ok := e.Value.(StringPair); ok && e.ID == PropUserProperty {
			out = append(out, pair)
		}
	}
	return out
}

// SubscriptionIdentifiers returns every subscription identifier in order.
func (p *Properties) SubscriptionIdentifiers() []uint32 {
	var out []uint32
	for _, e := range p.All() {
		if v, ok := e.Value.(uint32); ok && e.ID == PropSubscriptionIdentifier {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a copy that shares no entry slice with p.
func (p *Properties) Clone() Properties {
	if p.Len() == 0 {
		return Properties{}
	}
	return Properties{list: append([]Property(nil), p.list...)}
}

func (p *Properties) appendBody(b []byte) ([]byte, error) {
	var err error
	for _, e := range p.All() {
		kind, ok := propKinds[e.ID]
		if !ok {
			return b, fmt.Errorf("%w: 0x%02X", ErrUnknownPropertyID, byte(e.ID))
		}
		b = append(b, byte(e.ID))
		switch kind {
		case kindByte:
			v, ok := e.Value.(byte)
			if !ok {
				return b, propTypeError(e)
			}
			b = append(b, v)
		case kindUint16:
			v, ok := e.Value.(uint16)
			if !ok {
				return b, propTypeError(e)
			}
			b = appendUint16(b, v)
		case kindUint32:
			v, ok := e.Value.(uint32)
			if !ok {
				return b, propTypeError(e)
			}
			b = appendUint32(b, v)
		case kindVarint:
			v, ok := e.Value.(uint32)
			if !ok {
				return b, propTypeError(e)
			}
			b, err = appendVarint(b, v)
		case kindString:
			v, ok := e.Value.(string)
			if !ok {
				return b, propTypeError(e)
			}
			b, err = appendString(b, v)
		case kindBinary:
			v, ok := e.Value.([]byte)
			if !ok {
				return b, propTypeError(e)
			}
			b, err = appendBinary(b, v)
		case kindPair:
			v, ok := e.Value.(StringPair)
			if !ok {
				return b, propTypeError(e)
			}
			if b, err = appendString(b, v.Key); err == nil {
				b, err = appendString(b, v.Value)
			}
		}
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

func propTypeError(e Property) error {
	return fmt.Errorf("%w: property 0x%02X holds %T", ErrInvalidPropertyType, byte(e.ID), e.Value)
}

// appendProperties writes the length-prefixed property block.
func appendProperties(b []byte, p *Properties) ([]byte, error) {
	body, err := p.appendBody(nil)
	if err != nil {
		return b, err
	}
	if b, err = appendVarint(b, uint32(len(body))); err != nil {
		return b, err
	}
	return append(b, body...), nil
}

// readProperties decodes a length-prefixed property block.
func readProperties(r *reader) Properties {
	var p Properties
	n := int(r.varint("property length"))
	body := r.sub(n, "properties")
	for body.err == nil && body.len() > 0 {
		id := PropertyID(body.uint8("property id"))
		kind, ok := propKinds[id]
		if !ok {
			body.fail("unknown property 0x%02X", byte(id))
			break
		}
		var v any
		switch kind {
		case kindByte:
			v = body.uint8("byte property")
		case kindUint16:
			v = body.uint16("two byte property")
		case kindUint32:
			v = body.uint32("four byte property")
		case kindVarint:
			v = body.varint("varint property")
		case kindString:
			v = body.string("string property")
		case kindBinary:
			v = body.binary("binary property")
		case kindPair:
			v = StringPair{Key: body.string("user property key"), Value: body.string("user property value")}
		}
		p.list = append(p.list, Property{ID: id, Value: v})
	}
	if body.err != nil && r.err == nil {
		r.err = body.err
	}
	return p
}
