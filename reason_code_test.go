package mqtt5

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonCodeString(t *testing.T) {
	assert.Equal(t, "not authorized", ReasonNotAuthorized.String())
	assert.Equal(t, "empty", ReasonEmpty.String())
	assert.Equal(t, "reason code 0x7E", ReasonCode(0x7E).String())
}

func TestReasonCodeIsError(t *testing.T) {
	assert.False(t, ReasonSuccess.IsError())
	assert.False(t, ReasonNoMatchingSubscribers.IsError())
	assert.False(t, ReasonEmpty.IsError())
	assert.True(t, ReasonUnspecifiedError.IsError())
	assert.True(t, ReasonQuotaExceeded.IsError())
}

func TestReasonCodeIsFatalConnack(t *testing.T) {
	retry := []ReasonCode{
		ReasonServerUnavailable,
		ReasonServerBusy,
		ReasonQuotaExceeded,
		ReasonConnectionRateExceeded,
	}
	for _, rc := range retry {
		assert.False(t, rc.IsFatalConnack(), rc.String())
	}

	fatal := []ReasonCode{
		ReasonBadUserNameOrPassword,
		ReasonNotAuthorized,
		ReasonBanned,
		ReasonUnsupportedProtocolVersion,
		ReasonClientIDNotValid,
		ReasonBadAuthMethod,
		ReasonCode(0xFE),
	}
	for _, rc := range fatal {
		assert.True(t, rc.IsFatalConnack(), rc.String())
	}

	assert.False(t, ReasonSuccess.IsFatalConnack())
}

func TestReasonCodeValidIn(t *testing.T) {
	assert.True(t, ReasonGrantedQoS1.validIn(inSuback))
	assert.False(t, ReasonGrantedQoS1.validIn(inPuback))
	assert.True(t, ReasonPacketIDNotFound.validIn(inPubrel))
	assert.False(t, ReasonPacketIDNotFound.validIn(inPuback))
	assert.False(t, ReasonEmpty.validIn(inPuback|inSuback))
}

func TestEmptyReasons(t *testing.T) {
	assert.Equal(t, []ReasonCode{ReasonEmpty, ReasonEmpty, ReasonEmpty}, emptyReasons(3))
	assert.Empty(t, emptyReasons(0))
}
