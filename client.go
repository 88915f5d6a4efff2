package mqtt5

import (
	"context"
	"fmt"
	"sync"
)

// Client is an asynchronous MQTT v5 client. Operations return tokens that
// complete when the broker answered, the operation was cancelled, or the
// client stopped. Operations may be started before Run; they are sent once
// a connection is up.
type Client struct {
	opts    *clientOptions
	log     Logger
	metrics clientMetrics

	mu sync.Mutex

	// Session configuration, read at every connect.
	clientID  string
	username  string
	password  []byte
	will      *Will
	brokers   []broker
	brokerIdx int

	// Run lifecycle
	state     ConnState
	running   bool
	cancelled bool
	stopRun   context.CancelCauseFunc

	// Session state
	reg         *registry
	conn        *connection
	backlog     []*outbound
	caps        ServerCapabilities
	inboundQoS2 map[uint16]struct{}
	inbox       inbox
}

// New creates a client. Brokers given with WithBrokers are parsed here; an
// invalid list is logged and left empty, making Run fail with ErrNoBrokers.
func New(opts ...Option) *Client {
	options := applyOptions(opts...)

	c := &Client{
		opts:        options,
		log:         options.logger,
		metrics:     clientMetrics{m: options.metrics},
		clientID:    options.clientID,
		username:    options.username,
		password:    options.password,
		will:        options.will,
		reg:         newRegistry(),
		caps:        defaultCapabilities(),
		inboundQoS2: make(map[uint16]struct{}),
	}

	if options.brokers != "" {
		if err := c.Brokers(options.brokers, options.defaultPort); err != nil {
			c.log.Error("invalid broker list", LogFields{LogFieldError: err.Error()})
		}
	}

	return c
}

// Brokers sets the broker candidates as a comma separated list of
// host[:port] entries, optionally prefixed with a scheme (tcp, tls, mqtts,
// ws, wss, quic, unix). Entries without a port use defaultPort. The list
// applies from the next connect attempt.
func (c *Client) Brokers(hosts string, defaultPort uint16) error {
	list, err := parseBrokers(hosts, defaultPort)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.brokers = list
	c.brokerIdx = 0
	return nil
}

// Credentials sets the client identifier, username and password used from
// the next connect attempt.
func (c *Client) Credentials(clientID, username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clientID = clientID
	c.username = username
	c.password = []byte(password)
}

// Will sets the Will message sent in the next CONNECT. A nil will clears it.
func (c *Client) Will(w *Will) error {
	if w != nil {
		if err := w.validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.will = w
	return nil
}

// ClientID returns the client identifier, or the one the broker assigned.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.clientID
}

// Publish sends an application message. QoS 0 completes once the packet is
// written; QoS 1 on PUBACK; QoS 2 on PUBCOMP, or on a PUBREC carrying an
// error reason. Broker reason codes are results: err stays nil.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool, props *Properties) *Token[PublishResult] {
	op := newPublishOp(qos)
	p := &PublishPacket{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
		Props:   props.Clone(),
	}
	if len(c.opts.producerInterceptors) > 0 {
		msg := c.interceptPublish(&Message{Topic: p.Topic, Payload: p.Payload, QoS: p.QoS, Retain: p.Retain, Props: p.Props})
		if msg == nil {
			op.abort(ErrMessageDropped)
			return op.token
		}
		op = newPublishOp(msg.QoS)
		p = &PublishPacket{Topic: msg.Topic, Payload: msg.Payload, QoS: msg.QoS, Retain: msg.Retain, Props: msg.Props}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admitLocked(ctx); err != nil {
		op.abort(err)
		return op.token
	}
	c.startPublishLocked(ctx, op, p)
	return op.token
}

// Subscribe requests the given subscriptions. The result carries one reason
// code per subscription in request order.
func (c *Client) Subscribe(ctx context.Context, subs []Subscription, props *Properties) *Token[SubscribeResult] {
	op := &subscribeOp{topics: len(subs), token: newToken[SubscribeResult]()}
	p := &SubscribePacket{
		Subscriptions: append([]Subscription(nil), subs...),
		Props:         props.Clone(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admitLocked(ctx); err != nil {
		op.abort(err)
		return op.token
	}
	c.startSubscribeLocked(ctx, op, p)
	return op.token
}

// Unsubscribe removes the given topic filters. The result carries one
// reason code per filter in request order.
func (c *Client) Unsubscribe(ctx context.Context, filters []string, props *Properties) *Token[UnsubscribeResult] {
	op := &unsubscribeOp{topics: len(filters), token: newToken[UnsubscribeResult]()}
	p := &UnsubscribePacket{
		Filters: append([]string(nil), filters...),
		Props:   props.Clone(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admitLocked(ctx); err != nil {
		op.abort(err)
		return op.token
	}
	c.startUnsubscribeLocked(ctx, op, p)
	return op.token
}

// Disconnect writes a DISCONNECT with the given reason and stops the client
// as Cancel does, except that Run returns nil. Without a live connection it
// stops the client and completes with ErrNotConnected.
func (c *Client) Disconnect(ctx context.Context, reason ReasonCode, props *Properties) *Token[struct{}] {
	tok := newToken[struct{}]()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admitLocked(ctx); err != nil {
		tok.complete(struct{}{}, err)
		return tok
	}
	if c.conn == nil {
		c.shutdownLocked(errDisconnected)
		tok.complete(struct{}{}, ErrNotConnected)
		return tok
	}

	wire, err := c.encodeLocked(&DisconnectPacket{ReasonCode: reason, Props: props.Clone()})
	if err != nil {
		tok.complete(struct{}{}, err)
		return tok
	}

	var stop func() bool
	item := &outbound{wire: wire}
	item.written = func() {
		if stop != nil {
			stop()
		}
		c.shutdownLocked(errDisconnected)
		tok.complete(struct{}{}, nil)
	}
	item.dropped = func(err error) {
		if stop != nil {
			stop()
		}
		if !c.cancelled {
			c.shutdownLocked(errDisconnected)
		}
		tok.complete(struct{}{}, err)
	}
	c.conn.push(item)
	c.state = StateDisconnecting

	stop = c.watchLocked(ctx, func(err error) {
		if tok.complete(struct{}{}, err) {
			item.cancelled = true
			if c.state == StateDisconnecting && c.conn != nil {
				c.state = StateConnected
			}
		}
	})
	return tok
}

// emit sends an event to the event handler.
func (c *Client) emit(event error) {
	if c.opts.onEvent != nil {
		c.opts.onEvent(c, event)
	}
}

// admitLocked rejects new operations while the client is cancelled or when
// ctx is already done.
func (c *Client) admitLocked(ctx context.Context) error {
	if c.cancelled {
		return ErrOperationAborted
	}
	if ctx.Err() != nil {
		return abortError(ctx)
	}
	return nil
}

// watchLocked arranges for fn to run under the client lock once ctx is
// done. The returned stop function detaches it; it is nil for contexts
// that are never done.
func (c *Client) watchLocked(ctx context.Context, fn func(err error)) func() bool {
	if ctx.Done() == nil {
		return nil
	}
	return context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		fn(abortError(ctx))
	})
}

// encodeLocked serializes p and checks it against the broker's maximum
// packet size.
func (c *Client) encodeLocked(p Packet) ([]byte, error) {
	wire, err := Encode(p)
	if err != nil {
		return nil, err
	}
	if limit := c.caps.MaximumPacketSize; limit > 0 && uint32(len(wire)) > limit {
		return nil, fmt.Errorf("%w: %d bytes, broker maximum %d", ErrPacketTooLarge, len(wire), limit)
	}
	return wire, nil
}

// enqueueLocked hands a packet without an exchange to the live connection.
// While disconnected, QoS 0 publishes wait in the backlog and control
// packets are dropped.
func (c *Client) enqueueLocked(item *outbound) {
	if c.conn != nil {
		c.conn.push(item)
		return
	}
	if item.pub != nil {
		c.backlog = append(c.backlog, item)
		return
	}
	if item.dropped != nil {
		item.dropped(ErrNotConnected)
	}
}

// startExchangeLocked registers ex under a fresh packet identifier, encodes
// req with it and sends it if a connection is up.
func (c *Client) startExchangeLocked(ex *exchange, req Packet) error {
	if _, err := c.reg.register(ex); err != nil {
		return err
	}
	setPacketID(req, ex.id)

	wire, err := c.encodeLocked(req)
	if err != nil {
		c.reg.release(ex)
		ex.done = true
		return err
	}
	ex.wire = wire

	c.sendExchangeLocked(ex)
	c.metrics.pending(c.reg.len())
	return nil
}

// sendExchangeLocked queues the retained request of ex on the live
// connection. Publishes wait for a Receive Maximum slot; a resent PUBLISH
// carries DUP.
func (c *Client) sendExchangeLocked(ex *exchange) {
	cn := c.conn
	if cn == nil || ex.done {
		return
	}
	if ex.op.kind().usesQuota() && !ex.quota {
		if !cn.quota.tryAcquire() {
			cn.held = append(cn.held, ex)
			return
		}
		ex.quota = true
	}

	wire := ex.wire
	if ex.sent {
		wire = markDuplicate(wire)
	}
	cn.push(&outbound{wire: wire, ex: ex})
}

// finishExchangeLocked removes a completed exchange and hands its quota
// slot to the next held publish.
func (c *Client) finishExchangeLocked(ex *exchange) {
	ex.done = true
	c.reg.release(ex)
	c.metrics.pending(c.reg.len())

	if !ex.quota {
		return
	}
	ex.quota = false

	cn := c.conn
	if cn == nil {
		return
	}
	cn.quota.release()
	for len(cn.held) > 0 {
		next := cn.held[0]
		if !next.done {
			if !cn.quota.tryAcquire() {
				return
			}
			next.quota = true
			wire := next.wire
			if next.sent {
				wire = markDuplicate(wire)
			}
			cn.push(&outbound{wire: wire, ex: next})
		}
		cn.held[0] = nil
		cn.held = cn.held[1:]
	}
}

// abortExchangeLocked completes ex without a broker reply. Once its request
// was written, the identifier and quota slot stay reserved until the broker
// ends the exchange or the connection goes away, so a late reply cannot
// complete a newer exchange that reuses the identifier.
func (c *Client) abortExchangeLocked(ex *exchange, err error) {
	if ex.done {
		return
	}
	if ex.sent && c.conn != nil {
		ex.done = true
	} else {
		c.finishExchangeLocked(ex)
	}
	ex.op.abort(err)
}

// releaseReservedLocked frees the identifiers kept by aborted exchanges.
func (c *Client) releaseReservedLocked() {
	for _, ex := range c.reg.ordered() {
		if ex.done {
			c.reg.release(ex)
		}
	}
	c.metrics.pending(c.reg.len())
}
