package mqtt5

import (
	"cmp"
	"errors"
	"slices"
)

// ErrPIDOverrun is returned when all 65535 packet identifiers are in use.
var ErrPIDOverrun = errors.New("packet identifier space exhausted")

// exchange is one in-flight QoS-bearing request awaiting broker replies.
type exchange struct {
	id    uint16
	seq   uint64
	phase phase
	op    operation

	// wire is the serialized request retransmitted after a reconnect:
	// PUBLISH, SUBSCRIBE, UNSUBSCRIBE, or PUBREL once PUBREC arrived.
	wire []byte
	// sent is set once wire reached some connection; a resent PUBLISH
	// then carries DUP.
	sent bool
	// quota is set while the exchange holds a receive-maximum slot on the
	// live connection.
	quota bool
	// done is set once the operation completed. An aborted exchange whose
	// request was written stays registered until the broker ends it or the
	// connection goes away.
	done bool
}

// registry allocates packet identifiers and maps them to exchanges.
type registry struct {
	next    uint16
	seq     uint64
	pending map[uint16]*exchange
}

func newRegistry() *registry {
	return &registry{
		next:    1,
		pending: make(map[uint16]*exchange),
	}
}

// register assigns the next free identifier to ex. Allocation continues
// after the last identifier handed out and wraps from 65535 to 1.
func (r *registry) register(ex *exchange) (uint16, error) {
	if len(r.pending) >= maxUint16 {
		return 0, ErrPIDOverrun
	}
	for {
		id := r.next
		r.next++
		if r.next == 0 {
			r.next = 1
		}
		if _, used := r.pending[id]; used {
			continue
		}
		r.seq++
		ex.id = id
		ex.seq = r.seq
		r.pending[id] = ex
		return id, nil
	}
}

func (r *registry) lookup(id uint16) (*exchange, bool) {
	ex, ok := r.pending[id]
	return ex, ok
}

// release frees the identifier of ex. It is a no-op when id now belongs to
// another exchange.
func (r *registry) release(ex *exchange) {
	if cur, ok := r.pending[ex.id]; ok && cur == ex {
		delete(r.pending, ex.id)
	}
}

func (r *registry) len() int {
	return len(r.pending)
}

// ordered returns the pending exchanges in creation order.
func (r *registry) ordered() []*exchange {
	out := make([]*exchange, 0, len(r.pending))
	for _, ex := range r.pending {
		out = append(out, ex)
	}
	slices.SortFunc(out, func(a, b *exchange) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}
