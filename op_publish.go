package mqtt5

import (
	"context"
	"fmt"
)

// PublishResult is the outcome of a publish. For QoS 1 it carries the PUBACK
// reason and properties, for QoS 2 the PUBCOMP ones, or the PUBREC ones when
// PUBREC reported a failure. QoS 0 publishes complete with the zero value.
type PublishResult struct {
	ReasonCode ReasonCode
	Props      Properties
}

type publishOp struct {
	qos   byte
	token *Token[PublishResult]
	stop  func() bool
}

func newPublishOp(qos byte) *publishOp {
	return &publishOp{qos: qos, token: newToken[PublishResult]()}
}

func (o *publishOp) kind() opKind {
	switch o.qos {
	case 1:
		return opPublishQoS1
	case 2:
		return opPublishQoS2
	default:
		return opPublishQoS0
	}
}

func (o *publishOp) finish(res PublishResult, err error) {
	if o.stop != nil {
		o.stop()
	}
	o.token.complete(res, err)
}

func (o *publishOp) abort(err error) {
	o.finish(PublishResult{ReasonCode: ReasonEmpty}, err)
}

func (o *publishOp) resume(ex *exchange, reply Packet) (Packet, bool, error) {
	switch r := reply.(type) {
	case *PubackPacket:
		o.finish(PublishResult{ReasonCode: r.ReasonCode, Props: r.Props}, nil)
		return nil, true, nil
	case *PubrecPacket:
		if r.ReasonCode.IsError() {
			o.finish(PublishResult{ReasonCode: r.ReasonCode, Props: r.Props}, nil)
			return nil, true, nil
		}
		ex.phase = awaitPubcomp
		return &PubrelPacket{PacketID: ex.id}, false, nil
	case *PubcompPacket:
		o.finish(PublishResult{ReasonCode: r.ReasonCode, Props: r.Props}, nil)
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %s routed to %s", ErrProtocolError, reply.Type(), o.kind())
	}
}

// checkPublishLocked validates a publish against the request rules and the
// capabilities advertised in the last CONNACK.
func (c *Client) checkPublishLocked(p *PublishPacket) error {
	aliased := p.Topic == "" && p.Props.Has(PropTopicAlias)
	if !aliased {
		if err := ValidateTopicName(p.Topic); err != nil {
			return err
		}
	}
	if p.QoS > 2 {
		return ErrInvalidQoS
	}
	if p.QoS > c.caps.MaximumQoS {
		return fmt.Errorf("%w: qos %d, broker maximum %d", ErrQoSNotSupported, p.QoS, c.caps.MaximumQoS)
	}
	if p.Retain && !c.caps.RetainAvailable {
		return ErrRetainNotAvailable
	}
	if p.Props.Has(PropTopicAlias) {
		alias := p.Props.GetUint16(PropTopicAlias)
		if alias == 0 || alias > c.caps.TopicAliasMaximum {
			return fmt.Errorf("%w: alias %d, broker maximum %d", ErrTopicAliasMaximumReached, alias, c.caps.TopicAliasMaximum)
		}
	}
	return nil
}

func (c *Client) startPublishLocked(ctx context.Context, op *publishOp, p *PublishPacket) {
	if err := c.checkPublishLocked(p); err != nil {
		op.abort(err)
		return
	}

	if p.QoS == 0 {
		wire, err := c.encodeLocked(p)
		if err != nil {
			op.abort(err)
			return
		}
		c.enqueueLocked(&outbound{
			wire: wire,
			pub:  op,
			written: func() {
				op.finish(PublishResult{}, nil)
			},
		})
		op.stop = c.watchLocked(ctx, op.abort)
		return
	}

	ex := &exchange{op: op, phase: awaitPuback}
	if p.QoS == 2 {
		ex.phase = awaitPubrec
	}
	if err := c.startExchangeLocked(ex, p); err != nil {
		op.abort(err)
		return
	}
	op.stop = c.watchLocked(ctx, func(err error) {
		c.abortExchangeLocked(ex, err)
	})
}
