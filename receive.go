package mqtt5

import (
	"context"
	"errors"
)

// ErrReceiveInProgress is returned when Receive is called while an earlier
// Receive is still waiting.
var ErrReceiveInProgress = errors.New("receive already in progress")

// inbox is the queue of application messages not yet handed to Receive.
type inbox struct {
	queue  []*Message
	waiter *Token[*Message]
	stop   func() bool
}

// Receive returns the next application message. A queued message completes
// the token immediately, even after Cancel. Otherwise it completes with the
// next message to arrive, or with ErrOperationAborted when ctx is done or
// the client is cancelled. Only one Receive may wait at a time.
func (c *Client) Receive(ctx context.Context) *Token[*Message] {
	tok := newToken[*Message]()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() == nil && len(c.inbox.queue) > 0 {
		tok.complete(c.popMessageLocked(), nil)
		return tok
	}
	if err := c.admitLocked(ctx); err != nil {
		tok.complete(nil, err)
		return tok
	}
	if c.inbox.waiter != nil {
		tok.complete(nil, ErrReceiveInProgress)
		return tok
	}

	c.inbox.waiter = tok
	c.inbox.stop = c.watchLocked(ctx, func(err error) {
		if c.inbox.waiter == tok {
			c.inbox.waiter = nil
			c.inbox.stop = nil
		}
		tok.complete(nil, err)
	})
	return tok
}

func (c *Client) popMessageLocked() *Message {
	msg := c.inbox.queue[0]
	c.inbox.queue[0] = nil
	c.inbox.queue = c.inbox.queue[1:]
	return msg
}

// deliverLocked hands msg to the waiting Receive or queues it.
func (c *Client) deliverLocked(msg *Message) {
	if msg = c.interceptReceive(msg); msg == nil {
		return
	}
	if w := c.inbox.waiter; w != nil {
		c.inbox.waiter = nil
		if c.inbox.stop != nil {
			c.inbox.stop()
			c.inbox.stop = nil
		}
		w.complete(msg, nil)
		return
	}
	c.inbox.queue = append(c.inbox.queue, msg)
}

// abortReceiveLocked fails the waiting Receive, if any. Queued messages stay.
func (c *Client) abortReceiveLocked(err error) {
	w := c.inbox.waiter
	if w == nil {
		return
	}
	c.inbox.waiter = nil
	if c.inbox.stop != nil {
		c.inbox.stop()
		c.inbox.stop = nil
	}
	w.complete(nil, err)
}
