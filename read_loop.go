package mqtt5

import (
	"fmt"
)

// readLoop reads packets until the connection fails and dispatches each one
// under the client lock.
func (c *Client) readLoop(cn *connection) error {
	for {
		pkt, err := ReadPacket(cn.conn, c.opts.maxPacketSize)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		cn.touch()
		c.metrics.packetReceived(pkt.Type())

		c.mu.Lock()
		err = c.dispatchLocked(cn, pkt)
		c.mu.Unlock()
		if err != nil {
			return err
		}
	}
}

func (c *Client) dispatchLocked(cn *connection, pkt Packet) error {
	if cn.closed {
		return nil
	}

	switch p := pkt.(type) {
	case *PublishPacket:
		return c.handlePublishLocked(cn, p)
	case *PubrelPacket:
		c.handlePubrelLocked(cn, p)
		return nil
	case *PubackPacket, *PubrecPacket, *PubcompPacket, *SubackPacket, *UnsubackPacket:
		return c.routeReplyLocked(cn, pkt)
	case *PingrespPacket:
		return nil
	case *DisconnectPacket:
		c.log.Warn("broker sent DISCONNECT", LogFields{
			LogFieldBroker:     cn.broker.String(),
			LogFieldReasonCode: p.ReasonCode.String(),
		})
		return NewDisconnectError(p.ReasonCode, &p.Props, true)
	default:
		return fmt.Errorf("%w: unexpected %s", ErrProtocolError, pkt.Type())
	}
}

func (c *Client) handlePublishLocked(cn *connection, p *PublishPacket) error {
	if err := cn.aliases.resolve(p); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolError, err)
	}
	msg := messageFromPublish(p)

	switch p.QoS {
	case 0:
		c.deliverLocked(msg)
	case 1:
		c.deliverLocked(msg)
		c.pushControlLocked(cn, &PubackPacket{PacketID: p.PacketID, ReasonCode: ReasonSuccess})
	case 2:
		// A redelivery of an id that was not released yet is acknowledged
		// again without a second delivery.
		if _, dup := c.inboundQoS2[p.PacketID]; !dup {
			c.inboundQoS2[p.PacketID] = struct{}{}
			c.deliverLocked(msg)
		} else {
			c.log.Debug("duplicate publish", LogFields{
				LogFieldTopic:    msg.Topic,
				LogFieldQoS:      p.QoS,
				LogFieldPacketID: p.PacketID,
			})
		}
		c.pushControlLocked(cn, &PubrecPacket{PacketID: p.PacketID, ReasonCode: ReasonSuccess})
	}
	return nil
}

func (c *Client) handlePubrelLocked(cn *connection, p *PubrelPacket) {
	reason := ReasonSuccess
	if _, ok := c.inboundQoS2[p.PacketID]; ok {
		delete(c.inboundQoS2, p.PacketID)
	} else {
		reason = ReasonPacketIDNotFound
	}
	c.pushControlLocked(cn, &PubcompPacket{PacketID: p.PacketID, ReasonCode: reason})
}

// routeReplyLocked hands an acknowledgement to the exchange that owns its
// packet identifier. Replies nobody waits for are dropped.
func (c *Client) routeReplyLocked(cn *connection, reply Packet) error {
	id := packetID(reply)
	ex, ok := c.reg.lookup(id)
	if ok && ex.done && endsExchange(reply) {
		c.finishExchangeLocked(ex)
	}
	if !ok || ex.done || ex.phase.expects() != reply.Type() {
		c.log.Debug("discarding unmatched reply", LogFields{
			LogFieldPacketType: reply.Type().String(),
			LogFieldPacketID:   id,
		})
		return nil
	}

	next, done, err := ex.op.resume(ex, reply)
	if err != nil {
		return err
	}
	if done {
		c.finishExchangeLocked(ex)
		return nil
	}
	if next != nil {
		wire, err := c.encodeLocked(next)
		if err != nil {
			return err
		}
		ex.wire = wire
		cn.push(&outbound{wire: wire, ex: ex})
	}
	return nil
}

// endsExchange reports whether the broker is done with the identifier of
// reply. A successful PUBREC leaves it held until PUBREL.
func endsExchange(reply Packet) bool {
	if p, ok := reply.(*PubrecPacket); ok {
		return p.ReasonCode.IsError()
	}
	return true
}
