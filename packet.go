package mqtt5

// Packet is an MQTT control packet that the codec can encode and decode.
type Packet interface {
	// Type returns the control packet type.
	Type() PacketType

	// flags returns the low nibble of the first header byte.
	flags() byte

	// appendBody appends the variable header and payload.
	appendBody(b []byte) ([]byte, error)

	// decodeBody parses the variable header and payload; failures are
	// recorded on r.
	decodeBody(r *reader, flags byte)
}

func newPacket(t PacketType) (Packet, error) {
	switch t {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPUBACK:
		return &PubackPacket{}, nil
	case PacketPUBREC:
		return &PubrecPacket{}, nil
	case PacketPUBREL:
		return &PubrelPacket{}, nil
	case PacketPUBCOMP:
		return &PubcompPacket{}, nil
	case PacketSUBSCRIBE:
		return &SubscribePacket{}, nil
	case PacketSUBACK:
		return &SubackPacket{}, nil
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case PacketUNSUBACK:
		return &UnsubackPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	case PacketDISCONNECT:
		return &DisconnectPacket{}, nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// packetID returns the identifier of packets that carry one, or 0.
func packetID(p Packet) uint16 {
	switch v := p.(type) {
	case *PublishPacket:
		return v.PacketID
	case *PubackPacket:
		return v.PacketID
	case *PubrecPacket:
		return v.PacketID
	case *PubrelPacket:
		return v.PacketID
	case *PubcompPacket:
		return v.PacketID
	case *SubscribePacket:
		return v.PacketID
	case *SubackPacket:
		return v.PacketID
	case *UnsubscribePacket:
		return v.PacketID
	case *UnsubackPacket:
		return v.PacketID
	default:
		return 0
	}
}

func setPacketID(p Packet, id uint16) {
	switch v := p.(type) {
	case *PublishPacket:
		v.PacketID = id
	case *SubscribePacket:
		v.PacketID = id
	case *UnsubscribePacket:
		v.PacketID = id
	}
}
