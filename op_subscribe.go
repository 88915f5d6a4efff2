package mqtt5

import (
	"context"
	"fmt"
	"strings"
)

// SubscribeResult holds one SUBACK reason code per requested subscription.
type SubscribeResult struct {
	ReasonCodes []ReasonCode
	Props       Properties
}

// UnsubscribeResult holds one UNSUBACK reason code per requested filter.
type UnsubscribeResult struct {
	ReasonCodes []ReasonCode
	Props       Properties
}

type subscribeOp struct {
	topics int
	token  *Token[SubscribeResult]
	stop   func() bool
}

func (o *subscribeOp) kind() opKind { return opSubscribe }

func (o *subscribeOp) finish(res SubscribeResult, err error) {
	if o.stop != nil {
		o.stop()
	}
	o.token.complete(res, err)
}

func (o *subscribeOp) abort(err error) {
	o.finish(SubscribeResult{ReasonCodes: emptyReasons(o.topics)}, err)
}

func (o *subscribeOp) resume(_ *exchange, reply Packet) (Packet, bool, error) {
	ack, ok := reply.(*SubackPacket)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s routed to subscribe", ErrProtocolError, reply.Type())
	}
	if len(ack.ReasonCodes) != o.topics {
		return nil, false, fmt.Errorf("%w: SUBACK has %d reason codes for %d topics", ErrMalformedPacket, len(ack.ReasonCodes), o.topics)
	}
	o.finish(SubscribeResult{ReasonCodes: ack.ReasonCodes, Props: ack.Props}, nil)
	return nil, true, nil
}

type unsubscribeOp struct {
	topics int
	token  *Token[UnsubscribeResult]
	stop   func() bool
}

func (o *unsubscribeOp) kind() opKind { return opUnsubscribe }

func (o *unsubscribeOp) finish(res UnsubscribeResult, err error) {
	if o.stop != nil {
		o.stop()
	}
	o.token.complete(res, err)
}

func (o *unsubscribeOp) abort(err error) {
	o.finish(UnsubscribeResult{ReasonCodes: emptyReasons(o.topics)}, err)
}

func (o *unsubscribeOp) resume(_ *exchange, reply Packet) (Packet, bool, error) {
	ack, ok := reply.(*UnsubackPacket)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s routed to unsubscribe", ErrProtocolError, reply.Type())
	}
	if len(ack.ReasonCodes) != o.topics {
		return nil, false, fmt.Errorf("%w: UNSUBACK has %d reason codes for %d topics", ErrMalformedPacket, len(ack.ReasonCodes), o.topics)
	}
	o.finish(UnsubscribeResult{ReasonCodes: ack.ReasonCodes, Props: ack.Props}, nil)
	return nil, true, nil
}

func (c *Client) startSubscribeLocked(ctx context.Context, op *subscribeOp, p *SubscribePacket) {
	if len(p.Subscriptions) == 0 {
		op.abort(ErrNoTopics)
		return
	}
	for _, s := range p.Subscriptions {
		if err := ValidateTopicFilter(s.Filter); err != nil {
			op.abort(err)
			return
		}
		if s.QoS > 2 {
			op.abort(ErrInvalidQoS)
			return
		}
	}
	if err := c.checkSubscribeLocked(p); err != nil {
		op.abort(err)
		return
	}

	ex := &exchange{op: op, phase: awaitSuback}
	if err := c.startExchangeLocked(ex, p); err != nil {
		op.abort(err)
		return
	}
	op.stop = c.watchLocked(ctx, func(err error) {
		c.abortExchangeLocked(ex, err)
	})
}

func (c *Client) startUnsubscribeLocked(ctx context.Context, op *unsubscribeOp, p *UnsubscribePacket) {
	if len(p.Filters) == 0 {
		op.abort(ErrNoTopics)
		return
	}
	for _, f := range p.Filters {
		if err := ValidateTopicFilter(f); err != nil {
			op.abort(err)
			return
		}
	}

	ex := &exchange{op: op, phase: awaitUnsuback}
	if err := c.startExchangeLocked(ex, p); err != nil {
		op.abort(err)
		return
	}
	op.stop = c.watchLocked(ctx, func(err error) {
		c.abortExchangeLocked(ex, err)
	})
}

// checkSubscribeLocked rejects features the broker announced as unavailable
// in its CONNACK.
func (c *Client) checkSubscribeLocked(p *SubscribePacket) error {
	if !c.caps.SubIDAvailable && p.Props.Has(PropSubscriptionIdentifier) {
		return fmt.Errorf("%w: subscription identifier", ErrSubscriptionNotSupported)
	}
	for _, s := range p.Subscriptions {
		if !c.caps.SharedSubAvailable && strings.HasPrefix(s.Filter, sharePrefix) {
			return fmt.Errorf("%w: shared subscription %q", ErrSubscriptionNotSupported, s.Filter)
		}
		if !c.caps.WildcardSubAvailable && strings.ContainsAny(s.Filter, "+#") {
			return fmt.Errorf("%w: wildcard in %q", ErrSubscriptionNotSupported, s.Filter)
		}
	}
	return nil
}
