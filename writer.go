package mqtt5

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// connection is one live transport and the state scoped to it. Fields other
// than conn, broker, timings and lastReadNano are guarded by Client.mu.
type connection struct {
	conn    Conn
	broker  broker
	timings keepAliveTimings

	queue []*outbound
	wake  chan struct{}

	quota   *sendQuota
	held    []*exchange
	aliases *inboundAliases

	lastReadNano atomic.Int64
	closed       bool
}

func newConnection(conn Conn, b broker) *connection {
	cn := &connection{
		conn:   conn,
		broker: b,
		wake:   make(chan struct{}, 1),
		quota:  newSendQuota(maxUint16),
	}
	cn.touch()
	return cn
}

func (cn *connection) touch() {
	cn.lastReadNano.Store(time.Now().UnixNano())
}

func (cn *connection) lastRead() time.Time {
	return time.Unix(0, cn.lastReadNano.Load())
}

// push queues item for the writer. Must hold Client.mu.
func (cn *connection) push(item *outbound) {
	cn.queue = append(cn.queue, item)
	select {
	case cn.wake <- struct{}{}:
	default:
	}
}

// pop removes the first item that still needs writing. Must hold Client.mu.
func (cn *connection) pop() *outbound {
	for len(cn.queue) > 0 {
		item := cn.queue[0]
		cn.queue[0] = nil
		cn.queue = cn.queue[1:]
		if !item.stale() {
			return item
		}
	}
	return nil
}

// pushControlLocked queues a packet that belongs to no operation. It is
// dropped silently when the connection is already gone.
func (c *Client) pushControlLocked(cn *connection, p Packet) {
	if cn.closed {
		return
	}
	wire, err := Encode(p)
	if err != nil {
		c.log.Error("encode failed", LogFields{
			LogFieldPacketType: p.Type().String(),
			LogFieldError:      err.Error(),
		})
		return
	}
	cn.push(&outbound{wire: wire})
}

// writeLoop drains the connection queue in order. Writes happen outside the
// client lock; completions run under it.
func (c *Client) writeLoop(ctx context.Context, cn *connection) error {
	for {
		c.mu.Lock()
		item := cn.pop()
		if item != nil && item.ex != nil {
			item.ex.sent = true
		}
		c.mu.Unlock()

		if item == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-cn.wake:
				continue
			}
		}

		if err := c.write(cn, item.wire); err != nil {
			c.mu.Lock()
			// Give the item back so teardown can move it to the backlog
			// or drop it with its callback.
			cn.queue = append([]*outbound{item}, cn.queue...)
			c.mu.Unlock()
			return fmt.Errorf("write: %w", err)
		}

		c.mu.Lock()
		if item.written != nil && !item.cancelled {
			item.written()
		}
		c.mu.Unlock()
	}
}

func (c *Client) write(cn *connection, wire []byte) error {
	if c.opts.writeTimeout > 0 {
		if err := cn.conn.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout)); err != nil {
			return err
		}
	}
	if _, err := cn.conn.Write(wire); err != nil {
		return err
	}
	c.metrics.packetSent(PacketType(wire[0] >> 4))
	return nil
}
