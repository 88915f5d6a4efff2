package mqtt5

import (
	"golang.org/x/sync/semaphore"
)

// sendQuota enforces the broker's Receive Maximum: the number of QoS 1 and
// QoS 2 publishes that may be unacknowledged at once on one connection.
// MQTT v5.0 Section 4.9 (Flow Control).
type sendQuota struct {
	max      uint16
	sem      *semaphore.Weighted
	inFlight uint16
}

func newSendQuota(receiveMaximum uint16) *sendQuota {
	if receiveMaximum == 0 {
		receiveMaximum = maxUint16
	}
	return &sendQuota{
		max: receiveMaximum,
		sem: semaphore.NewWeighted(int64(receiveMaximum)),
	}
}

// tryAcquire takes one slot without blocking.
func (q *sendQuota) tryAcquire() bool {
	if !q.sem.TryAcquire(1) {
		return false
	}
	q.inFlight++
	return true
}

func (q *sendQuota) release() {
	if q.inFlight == 0 {
		return
	}
	q.inFlight--
	q.sem.Release(1)
}

// available returns the number of free slots.
func (q *sendQuota) available() uint16 {
	return q.max - q.inFlight
}
