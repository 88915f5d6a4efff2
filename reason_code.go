package mqtt5

import "fmt"

// ReasonCode is an MQTT v5 reason code.
type ReasonCode byte

// Reason codes.
const (
	ReasonSuccess                    ReasonCode = 0x00
	ReasonNormalDisconnection        ReasonCode = 0x00
	ReasonGrantedQoS0                ReasonCode = 0x00
	ReasonGrantedQoS1                ReasonCode = 0x01
	ReasonGrantedQoS2                ReasonCode = 0x02
	ReasonDisconnectWithWill         ReasonCode = 0x04
	ReasonNoMatchingSubscribers      ReasonCode = 0x10
	ReasonNoSubscriptionExisted      ReasonCode = 0x11
	ReasonContinueAuth               ReasonCode = 0x18
	ReasonReAuth                     ReasonCode = 0x19
	ReasonUnspecifiedError           ReasonCode = 0x80
	ReasonMalformedPacket            ReasonCode = 0x81
	ReasonProtocolError              ReasonCode = 0x82
	ReasonImplSpecificError          ReasonCode = 0x83
	ReasonUnsupportedProtocolVersion ReasonCode = 0x84
	ReasonClientIDNotValid           ReasonCode = 0x85
	ReasonBadUserNameOrPassword      ReasonCode = 0x86
	ReasonNotAuthorized              ReasonCode = 0x87
	ReasonServerUnavailable          ReasonCode = 0x88
	ReasonServerBusy                 ReasonCode = 0x89
	ReasonBanned                     ReasonCode = 0x8A
	ReasonServerShuttingDown         ReasonCode = 0x8B
	ReasonBadAuthMethod              ReasonCode = 0x8C
	ReasonKeepAliveTimeout           ReasonCode = 0x8D
	ReasonSessionTakenOver           ReasonCode = 0x8E
	ReasonTopicFilterInvalid         ReasonCode = 0x8F
	ReasonTopicNameInvalid           ReasonCode = 0x90
	ReasonPacketIDInUse              ReasonCode = 0x91
	ReasonPacketIDNotFound           ReasonCode = 0x92
	ReasonReceiveMaxExceeded         ReasonCode = 0x93
	ReasonTopicAliasInvalid          ReasonCode = 0x94
	ReasonPacketTooLarge             ReasonCode = 0x95
	ReasonMessageRateTooHigh         ReasonCode = 0x96
	ReasonQuotaExceeded              ReasonCode = 0x97
	ReasonAdminAction                ReasonCode = 0x98
	ReasonPayloadFormatInvalid       ReasonCode = 0x99
	ReasonRetainNotSupported         ReasonCode = 0x9A
	ReasonQoSNotSupported            ReasonCode = 0x9B
	ReasonUseAnotherServer           ReasonCode = 0x9C
	ReasonServerMoved                ReasonCode = 0x9D
	ReasonSharedSubsNotSupported     ReasonCode = 0x9E
	ReasonConnectionRateExceeded     ReasonCode = 0x9F
	ReasonMaxConnectTime             ReasonCode = 0xA0
	ReasonSubIDsNotSupported         ReasonCode = 0xA1
	ReasonWildcardSubsNotSupported   ReasonCode = 0xA2

	// ReasonEmpty is never sent on the wire. It fills the reason slots of
	// an operation that completed without a broker reply, for example
	// after cancellation.
	ReasonEmpty ReasonCode = 0xFF
)

// packet kinds a reason code may appear in
const (
	inConnack uint16 = 1 << iota
	inPuback
	inPubrec
	inPubrel
	inPubcomp
	inSuback
	inUnsuback
	inDisconnect

	inPubResponse = inPuback | inPubrec
)

type reasonInfo struct {
	text    string
	packets uint16
	// retry marks CONNACK failures worth another connect attempt
	retry bool
}

var reasonTable = map[ReasonCode]reasonInfo{
	ReasonSuccess:                    {"success", inConnack | inPubResponse | inPubrel | inPubcomp | inSuback | inUnsuback | inDisconnect, false},
	ReasonGrantedQoS1:                {"granted qos 1", inSuback, false},
	ReasonGrantedQoS2:                {"granted qos 2", inSuback, false},
	ReasonDisconnectWithWill:         {"disconnect with will message", inDisconnect, false},
	ReasonNoMatchingSubscribers:      {"no matching subscribers", inPubResponse, false},
	ReasonNoSubscriptionExisted:      {"no subscription existed", inUnsuback, false},
	ReasonContinueAuth:               {"continue authentication", 0, false},
	ReasonReAuth:                     {"re-authenticate", 0, false},
	ReasonUnspecifiedError:           {"unspecified error", inConnack | inPubResponse | inSuback | inUnsuback | inDisconnect, true},
	ReasonMalformedPacket:            {"malformed packet", inConnack | inDisconnect, false},
	ReasonProtocolError:              {"protocol error", inConnack | inDisconnect, false},
	ReasonImplSpecificError:          {"implementation specific error", inConnack | inPubResponse | inSuback | inUnsuback | inDisconnect, true},
	ReasonUnsupportedProtocolVersion: {"unsupported protocol version", inConnack, false},
	ReasonClientIDNotValid:           {"client identifier not valid", inConnack, false},
	ReasonBadUserNameOrPassword:      {"bad user name or password", inConnack, false},
	ReasonNotAuthorized:              {"not authorized", inConnack | inPubResponse | inSuback | inUnsuback | inDisconnect, false},
	ReasonServerUnavailable:          {"server unavailable", inConnack, true},
	ReasonServerBusy:                 {"server busy", inConnack | inDisconnect, true},
	ReasonBanned:                     {"banned", inConnack, false},
	ReasonServerShuttingDown:         {"server shutting down", inDisconnect, false},
	ReasonBadAuthMethod:              {"bad authentication method", inConnack, false},
	ReasonKeepAliveTimeout:           {"keep alive timeout", inDisconnect, false},
	ReasonSessionTakenOver:           {"session taken over", inDisconnect, false},
	ReasonTopicFilterInvalid:         {"topic filter invalid", inSuback | inUnsuback | inDisconnect, false},
	ReasonTopicNameInvalid:           {"topic name invalid", inConnack | inPubResponse | inDisconnect, false},
	ReasonPacketIDInUse:              {"packet identifier in use", inPubResponse | inSuback | inUnsuback, false},
	ReasonPacketIDNotFound:           {"packet identifier not found", inPubrel | inPubcomp, false},
	ReasonReceiveMaxExceeded:         {"receive maximum exceeded", inDisconnect, false},
	ReasonTopicAliasInvalid:          {"topic alias invalid", inDisconnect, false},
	ReasonPacketTooLarge:             {"packet too large", inConnack | inDisconnect, false},
	ReasonMessageRateTooHigh:         {"message rate too high", inDisconnect, false},
	ReasonQuotaExceeded:              {"quota exceeded", inConnack | inPubResponse | inSuback | inDisconnect, true},
	ReasonAdminAction:                {"administrative action", inDisconnect, false},
	ReasonPayloadFormatInvalid:       {"payload format invalid", inConnack | inPubResponse | inDisconnect, false},
	ReasonRetainNotSupported:         {"retain not supported", inConnack | inDisconnect, false},
	ReasonQoSNotSupported:            {"qos not supported", inConnack | inDisconnect, false},
	ReasonUseAnotherServer:           {"use another server", inConnack | inDisconnect, true},
	ReasonServerMoved:                {"server moved", inConnack | inDisconnect, true},
	ReasonSharedSubsNotSupported:     {"shared subscriptions not supported", inSuback | inDisconnect, false},
	ReasonConnectionRateExceeded:     {"connection rate exceeded", inConnack | inDisconnect, true},
	ReasonMaxConnectTime:             {"maximum connect time", inDisconnect, false},
	ReasonSubIDsNotSupported:         {"subscription identifiers not supported", inSuback | inDisconnect, false},
	ReasonWildcardSubsNotSupported:   {"wildcard subscriptions not supported", inSuback | inDisconnect, false},
	ReasonEmpty:                      {"empty", 0, false},
}

// String returns the reason description.
func (r ReasonCode) String() string {
	if info, ok := reasonTable[r]; ok {
		return info.text
	}
	return fmt.Sprintf("reason code 0x%02X", byte(r))
}

// IsError reports whether r is a failure code. ReasonEmpty is not a failure.
func (r ReasonCode) IsError() bool {
	return r >= 0x80 && r != ReasonEmpty
}

// IsFatalConnack reports whether a CONNACK failure should stop reconnecting.
func (r ReasonCode) IsFatalConnack() bool {
	if !r.IsError() {
		return false
	}
	info, ok := reasonTable[r]
	return !ok || !info.retry
}

func (r ReasonCode) validIn(mask uint16) bool {
	info, ok := reasonTable[r]
	return ok && info.packets&mask != 0
}

func emptyReasons(n int) []ReasonCode {
	out := make([]ReasonCode, n)
	for i := range out {
		out[i] = ReasonEmpty
	}
	return out
}
