package mqtt5

// PingreqPacket is the client keep-alive probe.
type PingreqPacket struct{}

func (p *PingreqPacket) Type() PacketType                    { return PacketPINGREQ }
func (p *PingreqPacket) flags() byte                         { return 0 }
func (p *PingreqPacket) appendBody(b []byte) ([]byte, error) { return b, nil }
func (p *PingreqPacket) decodeBody(*reader, byte)            {}

// PingrespPacket answers a PINGREQ.
type PingrespPacket struct{}

func (p *PingrespPacket) Type() PacketType                    { return PacketPINGRESP }
func (p *PingrespPacket) flags() byte                         { return 0 }
func (p *PingrespPacket) appendBody(b []byte) ([]byte, error) { return b, nil }
func (p *PingrespPacket) decodeBody(*reader, byte)            {}

// DisconnectPacket closes a connection from either side.
type DisconnectPacket struct {
	ReasonCode ReasonCode
	Props      Properties
}

func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }
func (p *DisconnectPacket) flags() byte      { return 0 }

func (p *DisconnectPacket) appendBody(b []byte) ([]byte, error) {
	if p.Props.Len() == 0 {
		if p.ReasonCode == ReasonNormalDisconnection {
			return b, nil
		}
		return append(b, byte(p.ReasonCode)), nil
	}
	b = append(b, byte(p.ReasonCode))
	return appendProperties(b, &p.Props)
}

func (p *DisconnectPacket) decodeBody(r *reader, _ byte) {
	if r.len() == 0 {
		return
	}
	p.ReasonCode = ReasonCode(r.uint8("reason code"))
	if r.err == nil && !p.ReasonCode.validIn(inDisconnect) {
		r.fail("DISCONNECT reason %s", p.ReasonCode)
		return
	}
	if r.len() > 0 {
		p.Props = readProperties(r)
	}
}
