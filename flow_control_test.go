package mqtt5

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendQuota(t *testing.T) {
	q := newSendQuota(2)
	assert.Equal(t, uint16(2), q.available())

	assert.True(t, q.tryAcquire())
	assert.True(t, q.tryAcquire())
	assert.False(t, q.tryAcquire())
	assert.Equal(t, uint16(0), q.available())

	q.release()
	assert.Equal(t, uint16(1), q.available())
	assert.True(t, q.tryAcquire())
}

func TestSendQuotaReleaseUnderflow(t *testing.T) {
	q := newSendQuota(1)
	q.release()
	assert.Equal(t, uint16(1), q.available())
	assert.True(t, q.tryAcquire())
	assert.False(t, q.tryAcquire())
}

func TestSendQuotaZeroMeansUnlimited(t *testing.T) {
	q := newSendQuota(0)
	assert.Equal(t, uint16(maxUint16), q.available())
}
