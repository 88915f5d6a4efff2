package mqtt5

import (
	"errors"
	"fmt"
)

// PacketType is the control packet type carried in the high nibble of the
// first header byte.
type PacketType byte

// Control packet types.
const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
	PacketAUTH        PacketType = 15
)

var packetNames = [...]string{
	PacketCONNECT:     "CONNECT",
	PacketCONNACK:     "CONNACK",
	PacketPUBLISH:     "PUBLISH",
	PacketPUBACK:      "PUBACK",
	PacketPUBREC:      "PUBREC",
	PacketPUBREL:      "PUBREL",
	PacketPUBCOMP:     "PUBCOMP",
	PacketSUBSCRIBE:   "SUBSCRIBE",
	PacketSUBACK:      "SUBACK",
	PacketUNSUBSCRIBE: "UNSUBSCRIBE",
	PacketUNSUBACK:    "UNSUBACK",
	PacketPINGREQ:     "PINGREQ",
	PacketPINGRESP:    "PINGRESP",
	PacketDISCONNECT:  "DISCONNECT",
	PacketAUTH:        "AUTH",
}

func (t PacketType) String() string {
	if t >= PacketCONNECT && t <= PacketAUTH {
		return packetNames[t]
	}
	return fmt.Sprintf("PacketType(%d)", byte(t))
}

// Fixed header errors.
var (
	ErrInvalidPacketType  = errors.New("invalid packet type")
	ErrInvalidPacketFlags = errors.New("invalid packet flags")
)

const (
	flagRetain = 0x01
	flagQoS    = 0x06
	flagDUP    = 0x08

	// PUBREL, SUBSCRIBE and UNSUBSCRIBE carry this fixed flag value.
	flagsReserved = 0x02
)

// checkFlags validates the low nibble of the first header byte.
func checkFlags(t PacketType, flags byte) error {
	switch t {
	case PacketPUBLISH:
		if flags&flagQoS == flagQoS {
			return fmt.Errorf("%w: PUBLISH with qos 3", ErrInvalidPacketFlags)
		}
		return nil
	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		if flags != flagsReserved {
			return fmt.Errorf("%w: %s flags 0x%X", ErrInvalidPacketFlags, t, flags)
		}
		return nil
	default:
		if flags != 0 {
			return fmt.Errorf("%w: %s flags 0x%X", ErrInvalidPacketFlags, t, flags)
		}
		return nil
	}
}

// markDuplicate returns a copy of an encoded PUBLISH with the DUP flag set.
// Other packet types are returned unchanged.
func markDuplicate(wire []byte) []byte {
	if len(wire) == 0 || PacketType(wire[0]>>4) != PacketPUBLISH || wire[0]&flagQoS == 0 {
		return wire
	}
	out := make([]byte, len(wire))
	copy(out, wire)
	out[0] |= flagDUP
	return out
}
