package mqtt5

import (
	"context"
	"fmt"
)

// opKind enumerates the client operations that share one connection.
type opKind uint8

const (
	opPublishQoS0 opKind = iota
	opPublishQoS1
	opPublishQoS2
	opSubscribe
	opUnsubscribe
)

func (k opKind) String() string {
	switch k {
	case opPublishQoS0:
		return "publish-qos0"
	case opPublishQoS1:
		return "publish-qos1"
	case opPublishQoS2:
		return "publish-qos2"
	case opSubscribe:
		return "subscribe"
	case opUnsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}

// usesQuota reports whether the operation counts against the broker's
// receive maximum.
func (k opKind) usesQuota() bool {
	return k == opPublishQoS1 || k == opPublishQoS2
}

// phase is the reply an exchange is waiting for.
type phase uint8

const (
	awaitPuback phase = iota + 1
	awaitPubrec
	awaitPubcomp
	awaitSuback
	awaitUnsuback
)

func (p phase) expects() PacketType {
	switch p {
	case awaitPuback:
		return PacketPUBACK
	case awaitPubrec:
		return PacketPUBREC
	case awaitPubcomp:
		return PacketPUBCOMP
	case awaitSuback:
		return PacketSUBACK
	case awaitUnsuback:
		return PacketUNSUBACK
	default:
		return 0
	}
}

// operation is the state machine behind one client call.
type operation interface {
	kind() opKind

	// resume consumes a reply routed to ex by packet identifier. It
	// returns the follow-up request, if any, and whether the exchange
	// finished. An error means the reply was malformed; the exchange is
	// left untouched.
	resume(ex *exchange, reply Packet) (next Packet, done bool, err error)

	// abort completes the operation without a broker reply. Results are
	// shaped like a real reply and filled with ReasonEmpty.
	abort(err error)
}

// abortError reports a per-operation cancellation.
func abortError(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrOperationAborted, context.Cause(ctx))
}

// outbound is one encoded packet waiting for the writer.
type outbound struct {
	wire []byte

	// ex is set for exchange requests. They are dropped on connection
	// loss and replayed from the registry.
	ex *exchange
	// pub is set for QoS 0 publishes. They survive connection loss.
	pub *publishOp

	// written runs under the client lock after a successful write.
	written func()
	// dropped runs under the client lock when the packet will not be
	// written.
	dropped func(err error)
	// cancelled skips the write.
	cancelled bool
}

func (o *outbound) stale() bool {
	switch {
	case o.cancelled:
		return true
	case o.ex != nil:
		return o.ex.done
	case o.pub != nil:
		return o.pub.token.completed()
	default:
		return false
	}
}
