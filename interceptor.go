package mqtt5

import (
	"errors"
	"fmt"
)

// ErrMessageDropped completes a Publish whose message a producer
// interceptor dropped.
var ErrMessageDropped = errors.New("message dropped by interceptor")

// ProducerInterceptor can modify or drop messages before they are
// published. Interceptors run in the order they are configured, each one
// receiving the message returned by the previous one.
type ProducerInterceptor interface {
	// OnSend returns the message to publish, or nil to drop it.
	OnSend(msg *Message) *Message
}

// ConsumerInterceptor can modify or drop received messages before Receive
// returns them. OnConsume runs with the client lock held and must not call
// the client.
type ConsumerInterceptor interface {
	// OnConsume returns the message to deliver, or nil to drop it.
	OnConsume(msg *Message) *Message
}

// ProducerInterceptorFunc adapts a function to ProducerInterceptor.
type ProducerInterceptorFunc func(msg *Message) *Message

// OnSend calls f(msg).
func (f ProducerInterceptorFunc) OnSend(msg *Message) *Message { return f(msg) }

// ConsumerInterceptorFunc adapts a function to ConsumerInterceptor.
type ConsumerInterceptorFunc func(msg *Message) *Message

// OnConsume calls f(msg).
func (f ConsumerInterceptorFunc) OnConsume(msg *Message) *Message { return f(msg) }

// safeIntercept runs fn with panic recovery. A panicking interceptor leaves
// the message unchanged.
func (c *Client) safeIntercept(msg *Message, fn func(*Message) *Message) (result *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("interceptor panic", LogFields{
				LogFieldTopic: msg.Topic,
				LogFieldError: fmt.Sprint(r),
			})
			result = msg
		}
	}()
	return fn(msg)
}

// interceptPublish applies the producer interceptors in order. A nil
// result breaks the chain.
func (c *Client) interceptPublish(msg *Message) *Message {
	for _, ic := range c.opts.producerInterceptors {
		if msg = c.safeIntercept(msg, ic.OnSend); msg == nil {
			return nil
		}
	}
	return msg
}

// interceptReceive applies the consumer interceptors in order. A nil
// result breaks the chain.
func (c *Client) interceptReceive(msg *Message) *Message {
	for _, ic := range c.opts.consumerInterceptors {
		if msg = c.safeIntercept(msg, ic.OnConsume); msg == nil {
			return nil
		}
	}
	return msg
}
