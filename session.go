package mqtt5

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// ConnState is the state of the client's connection to a broker.
type ConnState int32

const (
	// StateDisconnected means no transport is up and Run is not connecting.
	StateDisconnected ConnState = iota
	// StateConnecting means Run is dialing or waiting for CONNACK.
	StateConnecting
	// StateConnected means a session is established.
	StateConnected
	// StateDisconnecting means a DISCONNECT is queued.
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// ServerCapabilities are the limits the broker announced in its last
// CONNACK. Absent properties take their protocol defaults.
type ServerCapabilities struct {
	MaximumQoS           byte
	RetainAvailable      bool
	TopicAliasMaximum    uint16
	ReceiveMaximum       uint16
	MaximumPacketSize    uint32 // 0 means no limit
	WildcardSubAvailable bool
	SubIDAvailable       bool
	SharedSubAvailable   bool
	// ServerKeepAlive is the keep-alive the broker imposed, or 0.
	ServerKeepAlive  uint16
	AssignedClientID string
	ResponseInfo     string
	ServerReference  string
}

func defaultCapabilities() ServerCapabilities {
	return ServerCapabilities{
		MaximumQoS:           2,
		RetainAvailable:      true,
		ReceiveMaximum:       maxUint16,
		WildcardSubAvailable: true,
		SubIDAvailable:       true,
		SharedSubAvailable:   true,
	}
}

func capabilitiesFrom(connack *ConnackPacket) ServerCapabilities {
	caps := defaultCapabilities()
	props := &connack.Props

	if props.Has(PropMaximumQoS) {
		caps.MaximumQoS = props.GetByte(PropMaximumQoS)
	}
	if props.Has(PropRetainAvailable) {
		caps.RetainAvailable = props.GetByte(PropRetainAvailable) == 1
	}
	if props.Has(PropReceiveMaximum) {
		caps.ReceiveMaximum = props.GetUint16(PropReceiveMaximum)
	}
	if props.Has(PropWildcardSubAvailable) {
		caps.WildcardSubAvailable = props.GetByte(PropWildcardSubAvailable) == 1
	}
	if props.Has(PropSubscriptionIDAvailable) {
		caps.SubIDAvailable = props.GetByte(PropSubscriptionIDAvailable) == 1
	}
	if props.Has(PropSharedSubAvailable) {
		caps.SharedSubAvailable = props.GetByte(PropSharedSubAvailable) == 1
	}
	caps.TopicAliasMaximum = props.GetUint16(PropTopicAliasMaximum)
	caps.MaximumPacketSize = props.GetUint32(PropMaximumPacketSize)
	caps.ServerKeepAlive = props.GetUint16(PropServerKeepAlive)
	caps.AssignedClientID = props.GetString(PropAssignedClientIdentifier)
	caps.ResponseInfo = props.GetString(PropResponseInformation)
	caps.ServerReference = props.GetString(PropServerReference)

	return caps
}

// ServerCapabilities returns the capabilities from the last CONNACK.
func (c *Client) ServerCapabilities() ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.caps
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Run connects to the configured brokers and keeps the session up until it
// is stopped. It returns ErrOperationAborted after Cancel or when ctx is
// done, nil after a completed Disconnect, and a *ConnectError when a broker
// refused the connection with a reason that retrying cannot fix.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(c.brokers) == 0 {
		c.mu.Unlock()
		return ErrNoBrokers
	}
	runCtx, stop := context.WithCancelCause(ctx)
	c.running = true
	c.cancelled = false
	c.stopRun = stop
	c.mu.Unlock()

	c.loop(runCtx)
	cause := context.Cause(runCtx)

	c.mu.Lock()
	if !c.cancelled {
		c.shutdownLocked(cause)
	}
	c.running = false
	c.stopRun = nil
	c.state = StateDisconnected
	c.mu.Unlock()
	stop(nil)

	var connErr *ConnectError
	switch {
	case errors.Is(cause, errDisconnected):
		return nil
	case errors.As(cause, &connErr):
		return connErr
	default:
		return abortCause(cause)
	}
}

// Cancel aborts every outstanding operation with ErrOperationAborted, closes
// the connection and makes Run return. Operations started before the next
// Run complete immediately with ErrOperationAborted.
func (c *Client) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shutdownLocked(ErrOperationAborted)
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.backoffInitial
	bo.MaxInterval = c.opts.backoffMax
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// loop is the connect and maintain cycle. It returns once ctx is done.
func (c *Client) loop(ctx context.Context) {
	bo := c.newBackoff()
	failed, dropped := 0, 0

	for ctx.Err() == nil {
		c.mu.Lock()
		b := c.nextBrokerLocked()
		candidates := len(c.brokers)
		c.state = StateConnecting
		c.mu.Unlock()

		// Back off only once every candidate failed in a row.
		if failed > 0 && failed%candidates == 0 {
			delay := bo.NextBackOff()
			c.log.Info("all brokers failed, backing off", LogFields{
				LogFieldAttempt: failed,
				LogFieldDelay:   delay.String(),
			})
			c.emit(NewReconnectEvent(failed, delay))
			if !sleepContext(ctx, delay) {
				return
			}
		}

		cn, connack, err := c.connect(ctx, b)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var connErr *ConnectError
			if errors.As(err, &connErr) {
				c.emit(connErr)
				if connErr.ReasonCode.IsFatalConnack() {
					c.log.Error("broker refused connection", LogFields{
						LogFieldBroker:     b.String(),
						LogFieldReasonCode: connErr.ReasonCode.String(),
					})
					c.mu.Lock()
					c.shutdownLocked(connErr)
					c.mu.Unlock()
					return
				}
			}
			c.log.Warn("connect failed", LogFields{
				LogFieldBroker: b.String(),
				LogFieldError:  err.Error(),
			})
			failed++
			continue
		}

		failed = 0
		up := time.Now()

		err = c.serve(ctx, cn, connack)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrConnectionLost
		}
		c.log.Warn("connection lost", LogFields{
			LogFieldBroker: b.String(),
			LogFieldError:  err.Error(),
		})
		c.emit(NewConnectionLostError(err))

		// A connection that held for the initial backoff interval earns an
		// immediate reconnect. Shorter ones back off like failed dials.
		if time.Since(up) >= c.opts.backoffInitial {
			bo.Reset()
			dropped = 0
			continue
		}
		dropped++
		delay := bo.NextBackOff()
		c.log.Info("connection dropped early, backing off", LogFields{
			LogFieldBroker:  b.String(),
			LogFieldAttempt: dropped,
			LogFieldDelay:   delay.String(),
		})
		c.emit(NewReconnectEvent(dropped, delay))
		if !sleepContext(ctx, delay) {
			return
		}
	}
}

// connect dials b and performs the CONNECT handshake within the connect
// timeout.
func (c *Client) connect(ctx context.Context, b broker) (*connection, *ConnackPacket, error) {
	c.metrics.connectAttempt()
	start := time.Now()

	var (
		hsCtx  context.Context
		cancel context.CancelFunc
	)
	if c.opts.connectTimeout > 0 {
		hsCtx, cancel = context.WithTimeout(ctx, c.opts.connectTimeout)
	} else {
		hsCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	conn, err := c.dial(hsCtx, b)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", b, err)
	}

	c.mu.Lock()
	connect := c.connectPacketLocked()
	c.mu.Unlock()

	// Closing the transport unblocks the handshake when the timeout fires
	// or the client is cancelled.
	stop := context.AfterFunc(hsCtx, func() { conn.Close() })
	connack, err := c.handshake(conn, connect)
	if !stop() {
		conn.Close()
		if err == nil {
			err = context.Cause(hsCtx)
		}
		return nil, nil, fmt.Errorf("handshake with %s: %w", b, err)
	}
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	c.metrics.connected(time.Since(start))
	return newConnection(conn, b), connack, nil
}

func (c *Client) connectPacketLocked() *ConnectPacket {
	p := &ConnectPacket{
		ClientID:   c.clientID,
		Username:   c.username,
		Password:   c.password,
		KeepAlive:  c.opts.keepAlive,
		CleanStart: c.opts.cleanStart,
		Will:       c.will,
	}
	if c.opts.sessionExpiry > 0 {
		p.Props.Set(PropSessionExpiryInterval, c.opts.sessionExpiry)
	}
	if c.opts.receiveMaximum > 0 && c.opts.receiveMaximum < maxUint16 {
		p.Props.Set(PropReceiveMaximum, c.opts.receiveMaximum)
	}
	if c.opts.maxPacketSize > 0 {
		p.Props.Set(PropMaximumPacketSize, c.opts.maxPacketSize)
	}
	if c.opts.topicAliasMaximum > 0 {
		p.Props.Set(PropTopicAliasMaximum, c.opts.topicAliasMaximum)
	}
	for _, up := range c.opts.userProperties {
		p.Props.Add(PropUserProperty, up)
	}
	return p
}

func (c *Client) handshake(conn Conn, connect *ConnectPacket) (*ConnackPacket, error) {
	if err := WritePacket(conn, connect); err != nil {
		return nil, fmt.Errorf("write CONNECT: %w", err)
	}
	c.metrics.packetSent(PacketCONNECT)

	pkt, err := ReadPacket(conn, c.opts.maxPacketSize)
	if err != nil {
		return nil, fmt.Errorf("read CONNACK: %w", err)
	}
	c.metrics.packetReceived(pkt.Type())

	connack, ok := pkt.(*ConnackPacket)
	if !ok {
		return nil, fmt.Errorf("%w: expected CONNACK, got %s", ErrProtocolError, pkt.Type())
	}
	if connack.ReasonCode.IsError() {
		return nil, NewConnectError(connack.ReasonCode, &connack.Props)
	}
	return connack, nil
}

// serve runs the connection tasks until one of them fails or ctx is done,
// then tears the connection down.
func (c *Client) serve(ctx context.Context, cn *connection, connack *ConnackPacket) error {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		cn.conn.Close()
		return context.Cause(ctx)
	}
	c.onConnectedLocked(cn, connack)
	clientID := c.clientID
	c.mu.Unlock()

	c.log.Info("connected", LogFields{
		LogFieldBroker:    cn.broker.String(),
		LogFieldClientID:  clientID,
		"session_present": connack.SessionPresent,
	})
	c.emit(NewConnectedEvent(connack.SessionPresent, &connack.Props))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return cn.conn.Close()
	})
	g.Go(func() error { return c.readLoop(cn) })
	g.Go(func() error { return c.writeLoop(gctx, cn) })
	g.Go(func() error { return c.pingLoop(gctx, cn) })
	g.Go(func() error { return c.sentryLoop(gctx, cn) })
	err := g.Wait()

	c.mu.Lock()
	c.teardownLocked(cn)
	c.mu.Unlock()
	return err
}

// onConnectedLocked installs cn as the live connection, then replays the
// pending exchanges in creation order followed by the QoS 0 backlog.
func (c *Client) onConnectedLocked(cn *connection, connack *ConnackPacket) {
	c.caps = capabilitiesFrom(connack)
	if c.caps.AssignedClientID != "" {
		c.clientID = c.caps.AssignedClientID
	}
	if !connack.SessionPresent {
		clear(c.inboundQoS2)
	}

	keepAlive := c.opts.keepAlive
	if connack.Props.Has(PropServerKeepAlive) {
		keepAlive = c.caps.ServerKeepAlive
	}
	cn.timings = deriveKeepAlive(keepAlive, c.opts.pingInterval, c.opts.readTimeout)
	cn.quota = newSendQuota(c.caps.ReceiveMaximum)
	cn.aliases = newInboundAliases(c.opts.topicAliasMaximum)

	c.conn = cn
	c.state = StateConnected

	for _, ex := range c.reg.ordered() {
		c.sendExchangeLocked(ex)
	}
	backlog := c.backlog
	c.backlog = nil
	for _, item := range backlog {
		if !item.stale() {
			cn.push(item)
		}
	}
}

// teardownLocked detaches cn. Exchange requests still queued are dropped
// and replayed on the next connection; QoS 0 publishes move to the
// backlog; control packets are dropped.
func (c *Client) teardownLocked(cn *connection) {
	if c.conn != cn {
		return
	}
	cn.closed = true
	c.conn = nil
	c.state = StateConnecting
	if c.cancelled {
		c.state = StateDisconnected
	}
	c.metrics.connectionLost()

	for _, ex := range c.reg.pending {
		ex.quota = false
	}
	c.releaseReservedLocked()
	cn.held = nil

	for _, item := range cn.queue {
		switch {
		case item.stale(), item.ex != nil:
		case item.pub != nil:
			c.backlog = append(c.backlog, item)
		case item.dropped != nil:
			item.dropped(ErrNotConnected)
		}
	}
	cn.queue = nil
}

// shutdownLocked stops Run with cause and aborts every outstanding
// operation. New operations abort until Run is called again.
func (c *Client) shutdownLocked(cause error) {
	c.cancelled = true
	if c.stopRun != nil {
		c.stopRun(cause)
	}

	err := abortCause(cause)
	for _, ex := range c.reg.ordered() {
		c.abortExchangeLocked(ex, err)
	}
	c.releaseReservedLocked()
	for _, item := range c.backlog {
		abortOutbound(item, err)
	}
	c.backlog = nil
	if cn := c.conn; cn != nil {
		for _, item := range cn.queue {
			abortOutbound(item, err)
		}
		cn.held = nil
	}
	c.abortReceiveLocked(err)
}

func abortOutbound(item *outbound, err error) {
	if item.cancelled {
		return
	}
	item.cancelled = true
	if item.pub != nil {
		item.pub.abort(err)
	}
	if item.dropped != nil {
		item.dropped(err)
	}
}

// abortCause is the error operations complete with when the client stops.
func abortCause(cause error) error {
	if cause == nil || errors.Is(cause, ErrOperationAborted) {
		return ErrOperationAborted
	}
	return fmt.Errorf("%w: %w", ErrOperationAborted, cause)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
