package mqtt5

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("qos 0 completes once written", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		connect := bc.handshake(nil)
		assert.Equal(t, "test-client", connect.ClientID)
		assert.True(t, connect.CleanStart)

		tok := c.Publish(ctx, "sensors/temp", []byte("21.5"), 0, false, nil)

		pub := expectPacket[*PublishPacket](bc)
		assert.Equal(t, "sensors/temp", pub.Topic)
		assert.Equal(t, []byte("21.5"), pub.Payload)
		assert.Equal(t, uint16(0), pub.PacketID)

		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, ReasonSuccess, res.ReasonCode)
	})

	t.Run("qos 1 completes on puback with its reason", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		var props Properties
		props.Set(PropContentType, "text/plain")
		tok := c.Publish(ctx, "a/b", []byte("hello"), 1, true, &props)

		pub := expectPacket[*PublishPacket](bc)
		assert.Equal(t, byte(1), pub.QoS)
		assert.True(t, pub.Retain)
		assert.False(t, pub.DUP)
		assert.NotZero(t, pub.PacketID)
		assert.Equal(t, "text/plain", pub.Props.GetString(PropContentType))

		bc.write(&PubackPacket{PacketID: pub.PacketID, ReasonCode: ReasonNoMatchingSubscribers})

		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, ReasonNoMatchingSubscribers, res.ReasonCode)
	})

	t.Run("qos 2 runs pubrec pubrel pubcomp", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		tok := c.Publish(ctx, "a/b", []byte("x"), 2, false, nil)

		pub := expectPacket[*PublishPacket](bc)
		assert.Equal(t, byte(2), pub.QoS)
		bc.write(&PubrecPacket{PacketID: pub.PacketID})

		rel := expectPacket[*PubrelPacket](bc)
		assert.Equal(t, pub.PacketID, rel.PacketID)
		assert.Equal(t, ReasonSuccess, rel.ReasonCode)

		select {
		case <-tok.Done():
			t.Fatal("completed before PUBCOMP")
		default:
		}

		bc.write(&PubcompPacket{PacketID: pub.PacketID})
		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, ReasonSuccess, res.ReasonCode)
	})

	t.Run("qos 2 stops at a failed pubrec", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		tok := c.Publish(ctx, "a/b", []byte("x"), 2, false, nil)
		pub := expectPacket[*PublishPacket](bc)
		bc.write(&PubrecPacket{PacketID: pub.PacketID, ReasonCode: ReasonQuotaExceeded})

		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, ReasonQuotaExceeded, res.ReasonCode)
		bc.expectSilence(100 * time.Millisecond)
	})

	t.Run("qos 0 published before connect is sent after connect", func(t *testing.T) {
		b := newFakeBroker(t)
		c := New(WithBrokers(b.addr(), DefaultPort), WithKeepAlive(0))
		tok := c.Publish(ctx, "early", []byte("1"), 0, false, nil)

		done := make(chan error, 1)
		go func() { done <- c.Run(ctx) }()
		t.Cleanup(func() {
			c.Cancel()
			waitRun(t, done)
		})

		bc := b.accept(t)
		bc.handshake(nil)
		pub := expectPacket[*PublishPacket](bc)
		assert.Equal(t, "early", pub.Topic)
		_, err := await(t, tok)
		require.NoError(t, err)
	})

	t.Run("replies for other phases or unknown ids are discarded", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		bc.write(&PubackPacket{PacketID: 999})

		tok := c.Publish(ctx, "a/b", []byte("x"), 1, false, nil)
		pub := expectPacket[*PublishPacket](bc)
		bc.write(&PubcompPacket{PacketID: pub.PacketID})
		bc.write(&SubackPacket{PacketID: pub.PacketID, ReasonCodes: []ReasonCode{ReasonGrantedQoS1}})

		select {
		case <-tok.Done():
			t.Fatal("completed by a mismatched reply")
		case <-time.After(50 * time.Millisecond):
		}

		bc.write(&PubackPacket{PacketID: pub.PacketID})
		_, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, StateConnected, c.State())
	})
}

func TestClientPublishValidation(t *testing.T) {
	ctx := context.Background()
	c := New()

	tests := []struct {
		name  string
		topic string
		qos   byte
		err   error
	}{
		{"empty topic", "", 0, ErrEmptyTopic},
		{"wildcard in topic", "a/+/b", 1, ErrInvalidTopic},
		{"qos above 2", "a/b", 3, ErrInvalidQoS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := await(t, c.Publish(ctx, tt.topic, nil, tt.qos, false, nil))
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, ReasonEmpty, res.ReasonCode)
		})
	}

	t.Run("topic alias beyond broker maximum", func(t *testing.T) {
		var props Properties
		props.Set(PropTopicAlias, uint16(1))
		_, err := await(t, c.Publish(ctx, "", nil, 0, false, &props))
		assert.ErrorIs(t, err, ErrTopicAliasMaximumReached)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := await(t, c.Publish(cctx, "a/b", nil, 1, false, nil))
		assert.ErrorIs(t, err, ErrOperationAborted)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClientServerCapabilities(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker(t)
	c, _ := runClient(t, b.addr())
	bc := b.accept(t)

	connack := &ConnackPacket{}
	connack.Props.Set(PropMaximumQoS, byte(1))
	connack.Props.Set(PropRetainAvailable, byte(0))
	connack.Props.Set(PropMaximumPacketSize, uint32(64))
	connack.Props.Set(PropAssignedClientIdentifier, "assigned-7")
	bc.handshake(connack)
	waitState(t, c, StateConnected)

	caps := c.ServerCapabilities()
	assert.Equal(t, byte(1), caps.MaximumQoS)
	assert.False(t, caps.RetainAvailable)
	assert.Equal(t, uint32(64), caps.MaximumPacketSize)
	assert.Equal(t, "assigned-7", c.ClientID())

	_, err := await(t, c.Publish(ctx, "a/b", nil, 2, false, nil))
	assert.ErrorIs(t, err, ErrQoSNotSupported)

	_, err = await(t, c.Publish(ctx, "a/b", nil, 0, true, nil))
	assert.ErrorIs(t, err, ErrRetainNotAvailable)

	_, err = await(t, c.Publish(ctx, "a/b", []byte(strings.Repeat("x", 100)), 1, false, nil))
	assert.ErrorIs(t, err, ErrPacketTooLarge)

	tok := c.Publish(ctx, "a/b", []byte("ok"), 1, false, nil)
	pub := expectPacket[*PublishPacket](bc)
	bc.write(&PubackPacket{PacketID: pub.PacketID})
	_, err = await(t, tok)
	require.NoError(t, err)
}

func TestClientSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("suback reason codes in request order", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		tok := c.Subscribe(ctx, []Subscription{
			{Filter: "sensors/#", QoS: 1, NoLocal: true},
			{Filter: "$share/g/jobs/+", QoS: 2, RetainHandling: SendRetainedNever},
		}, nil)

		sub := expectPacket[*SubscribePacket](bc)
		require.Len(t, sub.Subscriptions, 2)
		assert.Equal(t, "sensors/#", sub.Subscriptions[0].Filter)
		assert.True(t, sub.Subscriptions[0].NoLocal)
		assert.Equal(t, SendRetainedNever, sub.Subscriptions[1].RetainHandling)

		bc.write(&SubackPacket{PacketID: sub.PacketID, ReasonCodes: []ReasonCode{ReasonGrantedQoS1, ReasonNotAuthorized}})

		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, []ReasonCode{ReasonGrantedQoS1, ReasonNotAuthorized}, res.ReasonCodes)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		tok := c.Unsubscribe(ctx, []string{"a/#", "b"}, nil)
		unsub := expectPacket[*UnsubscribePacket](bc)
		assert.Equal(t, []string{"a/#", "b"}, unsub.Filters)
		bc.write(&UnsubackPacket{PacketID: unsub.PacketID, ReasonCodes: []ReasonCode{ReasonSuccess, ReasonNoSubscriptionExisted}})

		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, []ReasonCode{ReasonSuccess, ReasonNoSubscriptionExisted}, res.ReasonCodes)
	})

	t.Run("cancelled subscribe completes with empty reasons", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		sctx, cancel := context.WithCancel(ctx)
		tok := c.Subscribe(sctx, []Subscription{{Filter: "a"}, {Filter: "b"}}, nil)
		sub := expectPacket[*SubscribePacket](bc)
		cancel()

		res, err := await(t, tok)
		assert.ErrorIs(t, err, ErrOperationAborted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []ReasonCode{ReasonEmpty, ReasonEmpty}, res.ReasonCodes)

		// The late SUBACK is discarded and the connection stays up.
		bc.write(&SubackPacket{PacketID: sub.PacketID, ReasonCodes: []ReasonCode{ReasonSuccess, ReasonSuccess}})

		pubTok := c.Publish(ctx, "a", nil, 1, false, nil)
		pub := expectPacket[*PublishPacket](bc)
		bc.write(&PubackPacket{PacketID: pub.PacketID})
		_, err = await(t, pubTok)
		require.NoError(t, err)
	})

	t.Run("reason count mismatch drops the connection and resends", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		tok := c.Subscribe(ctx, []Subscription{{Filter: "a"}, {Filter: "b"}}, nil)
		sub := expectPacket[*SubscribePacket](bc)
		bc.write(&SubackPacket{PacketID: sub.PacketID, ReasonCodes: []ReasonCode{ReasonSuccess}})
		bc.expectClosed()

		bc2 := b.accept(t)
		bc2.handshake(&ConnackPacket{SessionPresent: true})
		again := expectPacket[*SubscribePacket](bc2)
		assert.Equal(t, sub.PacketID, again.PacketID)
		bc2.write(&SubackPacket{PacketID: again.PacketID, ReasonCodes: []ReasonCode{ReasonSuccess, ReasonGrantedQoS1}})

		res, err := await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, []ReasonCode{ReasonSuccess, ReasonGrantedQoS1}, res.ReasonCodes)
	})

	t.Run("validation", func(t *testing.T) {
		c := New()

		res, err := await(t, c.Subscribe(ctx, nil, nil))
		assert.ErrorIs(t, err, ErrNoTopics)
		assert.Empty(t, res.ReasonCodes)

		res, err = await(t, c.Subscribe(ctx, []Subscription{{Filter: "ok"}, {Filter: "a/#/b"}}, nil))
		assert.ErrorIs(t, err, ErrInvalidTopic)
		assert.Equal(t, []ReasonCode{ReasonEmpty, ReasonEmpty}, res.ReasonCodes)

		_, err = await(t, c.Subscribe(ctx, []Subscription{{Filter: "a", QoS: 3}}, nil))
		assert.ErrorIs(t, err, ErrInvalidQoS)

		_, err = await(t, c.Unsubscribe(ctx, []string{""}, nil))
		assert.ErrorIs(t, err, ErrEmptyTopic)
	})
}

func TestClientReceiveMaximum(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker(t)
	c, _ := runClient(t, b.addr())
	bc := b.accept(t)

	connack := &ConnackPacket{}
	connack.Props.Set(PropReceiveMaximum, uint16(1))
	bc.handshake(connack)
	waitState(t, c, StateConnected)

	tok1 := c.Publish(ctx, "q", []byte("1"), 1, false, nil)
	tok2 := c.Publish(ctx, "q", []byte("2"), 1, false, nil)

	p1 := expectPacket[*PublishPacket](bc)
	assert.Equal(t, []byte("1"), p1.Payload)
	bc.expectSilence(100 * time.Millisecond)

	// QoS 0 does not count against the quota.
	tok0 := c.Publish(ctx, "q", []byte("0"), 0, false, nil)
	p0 := expectPacket[*PublishPacket](bc)
	assert.Equal(t, []byte("0"), p0.Payload)
	_, err := await(t, tok0)
	require.NoError(t, err)

	bc.write(&PubackPacket{PacketID: p1.PacketID})
	p2 := expectPacket[*PublishPacket](bc)
	assert.Equal(t, []byte("2"), p2.Payload)
	assert.NotEqual(t, p1.PacketID, p2.PacketID)
	bc.write(&PubackPacket{PacketID: p2.PacketID})

	_, err = await(t, tok1)
	require.NoError(t, err)
	_, err = await(t, tok2)
	require.NoError(t, err)
}

func TestClientInterceptors(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker(t)

	producer := ProducerInterceptorFunc(func(msg *Message) *Message {
		if strings.HasPrefix(msg.Topic, "blocked/") {
			return nil
		}
		msg.Topic = "demo/" + msg.Topic
		return msg
	})
	consumer := ConsumerInterceptorFunc(func(msg *Message) *Message {
		if strings.HasPrefix(msg.Topic, "drop/") {
			return nil
		}
		msg.Payload = []byte(strings.ToUpper(string(msg.Payload)))
		return msg
	})
	panicky := ConsumerInterceptorFunc(func(*Message) *Message { panic("boom") })

	c, _ := runClient(t, b.addr(),
		WithProducerInterceptors(producer),
		WithConsumerInterceptors(panicky, consumer),
	)
	bc := b.accept(t)
	bc.handshake(nil)

	_, err := await(t, c.Publish(ctx, "blocked/x", nil, 1, false, nil))
	assert.ErrorIs(t, err, ErrMessageDropped)

	tok := c.Publish(ctx, "x", []byte("p"), 0, false, nil)
	pub := expectPacket[*PublishPacket](bc)
	assert.Equal(t, "demo/x", pub.Topic)
	_, err = await(t, tok)
	require.NoError(t, err)

	bc.write(&PublishPacket{Topic: "drop/me", Payload: []byte("no")})
	bc.write(&PublishPacket{Topic: "keep", Payload: []byte("yes")})

	msg, err := await(t, c.Receive(ctx))
	require.NoError(t, err)
	assert.Equal(t, "keep", msg.Topic)
	assert.Equal(t, []byte("YES"), msg.Payload)
}

func TestClientMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMetrics()
	b := newFakeBroker(t)
	c, _ := runClient(t, b.addr(), WithMetrics(m))
	bc := b.accept(t)
	bc.handshake(nil)

	tok := c.Publish(ctx, "a", nil, 1, false, nil)
	pub := expectPacket[*PublishPacket](bc)
	bc.write(&PubackPacket{PacketID: pub.PacketID})
	_, err := await(t, tok)
	require.NoError(t, err)

	assert.Equal(t, float64(1), counterValue(m, MetricConnectAttempts, nil))
	assert.Equal(t, float64(1), counterValue(m, MetricConnects, nil))
	assert.Equal(t, uint64(1), m.GetHistogram(MetricConnectDuration, nil).Count())
	assert.Equal(t, float64(1), counterValue(m, MetricPacketsSent, MetricLabels{LabelPacketType: "CONNECT"}))
	assert.Equal(t, float64(1), counterValue(m, MetricPacketsReceived, MetricLabels{LabelPacketType: "PUBACK"}))
	assert.Equal(t, float64(0), m.GetGauge(MetricPendingExchanges, nil).Value())
	assert.Eventually(t, func() bool {
		return counterValue(m, MetricPacketsSent, MetricLabels{LabelPacketType: "PUBLISH"}) == 1
	}, testTimeout, 5*time.Millisecond)
}

func counterValue(m *MemoryMetrics, name string, labels MetricLabels) float64 {
	if c := m.GetCounter(name, labels); c != nil {
		return c.Value()
	}
	return 0
}

// reserved reports whether id is still held by the client.
func reserved(c *Client, id uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.reg.lookup(id)
	return ok
}

func TestClientPublishCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("qos 1 cancelled after write", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		pctx, cancel := context.WithCancel(ctx)
		tok := c.Publish(pctx, "a/b", []byte("x"), 1, false, nil)
		first := expectPacket[*PublishPacket](bc)
		cancel()

		res, err := await(t, tok)
		assert.ErrorIs(t, err, ErrOperationAborted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, ReasonEmpty, res.ReasonCode)
		assert.True(t, reserved(c, first.PacketID))
		bc.expectSilence(50 * time.Millisecond)

		// Allocation wraps onto the identifier of the cancelled publish.
		c.mu.Lock()
		c.reg.next = first.PacketID
		c.mu.Unlock()

		tok = c.Publish(ctx, "a/b", []byte("y"), 1, false, nil)
		second := expectPacket[*PublishPacket](bc)
		assert.NotEqual(t, first.PacketID, second.PacketID)

		bc.write(&PubackPacket{PacketID: first.PacketID, ReasonCode: ReasonNoMatchingSubscribers})
		bc.write(&PubackPacket{PacketID: second.PacketID})

		res, err = await(t, tok)
		require.NoError(t, err)
		assert.Equal(t, ReasonSuccess, res.ReasonCode)
		assert.False(t, reserved(c, first.PacketID))
	})

	t.Run("qos 2 cancelled before pubcomp", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		pctx, cancel := context.WithCancel(ctx)
		tok := c.Publish(pctx, "a/b", []byte("x"), 2, false, nil)
		pub := expectPacket[*PublishPacket](bc)
		bc.write(&PubrecPacket{PacketID: pub.PacketID})
		expectPacket[*PubrelPacket](bc)
		cancel()

		res, err := await(t, tok)
		assert.ErrorIs(t, err, ErrOperationAborted)
		assert.Equal(t, ReasonEmpty, res.ReasonCode)

		bc.conn.Close()
		bc2 := b.accept(t)
		bc2.handshake(&ConnackPacket{SessionPresent: true})
		bc2.expectSilence(100 * time.Millisecond)
		assert.False(t, reserved(c, pub.PacketID))
	})

	t.Run("qos 2 cancelled before pubrec", func(t *testing.T) {
		b := newFakeBroker(t)
		c, _ := runClient(t, b.addr())
		bc := b.accept(t)
		bc.handshake(nil)

		pctx, cancel := context.WithCancel(ctx)
		tok := c.Publish(pctx, "a/b", []byte("x"), 2, false, nil)
		pub := expectPacket[*PublishPacket](bc)
		cancel()

		res, err := await(t, tok)
		assert.ErrorIs(t, err, ErrOperationAborted)
		assert.Equal(t, ReasonEmpty, res.ReasonCode)

		// The broker still holds the identifier after a successful PUBREC.
		bc.write(&PubrecPacket{PacketID: pub.PacketID})
		bc.expectSilence(50 * time.Millisecond)
		assert.True(t, reserved(c, pub.PacketID))
	})
}

func TestClientPIDOverrun(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker(t)
	c, _ := runClient(t, b.addr())
	bc := b.accept(t)
	bc.handshake(nil)
	waitState(t, c, StateConnected)

	c.mu.Lock()
	for range maxUint16 {
		_, err := c.reg.register(&exchange{op: newPublishOp(1), phase: awaitPuback})
		require.NoError(t, err)
	}
	c.mu.Unlock()

	res, err := await(t, c.Publish(ctx, "a/b", nil, 1, false, nil))
	assert.ErrorIs(t, err, ErrPIDOverrun)
	assert.Equal(t, ReasonEmpty, res.ReasonCode)

	_, err = await(t, c.Subscribe(ctx, []Subscription{{Filter: "a"}}, nil))
	assert.ErrorIs(t, err, ErrPIDOverrun)

	_, err = await(t, c.Unsubscribe(ctx, []string{"a"}, nil))
	assert.ErrorIs(t, err, ErrPIDOverrun)

	bc.expectSilence(100 * time.Millisecond)

	tok := c.Publish(ctx, "a/b", []byte("qos0"), 0, false, nil)
	pub := expectPacket[*PublishPacket](bc)
	assert.Equal(t, []byte("qos0"), pub.Payload)
	_, err = await(t, tok)
	require.NoError(t, err)
}

func TestClientSubscribeCapabilities(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker(t)
	c, _ := runClient(t, b.addr())
	bc := b.accept(t)

	connack := &ConnackPacket{}
	connack.Props.Set(PropWildcardSubAvailable, byte(0))
	connack.Props.Set(PropSubscriptionIDAvailable, byte(0))
	connack.Props.Set(PropSharedSubAvailable, byte(0))
	bc.handshake(connack)
	waitState(t, c, StateConnected)

	caps := c.ServerCapabilities()
	assert.False(t, caps.WildcardSubAvailable)
	assert.False(t, caps.SubIDAvailable)
	assert.False(t, caps.SharedSubAvailable)

	var subID Properties
	subID.Set(PropSubscriptionIdentifier, uint32(7))

	tests := []struct {
		name  string
		subs  []Subscription
		props *Properties
	}{
		{"single level wildcard", []Subscription{{Filter: "a/+/c"}}, nil},
		{"multi level wildcard", []Subscription{{Filter: "plain"}, {Filter: "a/#"}}, nil},
		{"shared subscription", []Subscription{{Filter: "$share/g/jobs"}}, nil},
		{"subscription identifier", []Subscription{{Filter: "plain"}}, &subID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := await(t, c.Subscribe(ctx, tt.subs, tt.props))
			assert.ErrorIs(t, err, ErrSubscriptionNotSupported)
			assert.Len(t, res.ReasonCodes, len(tt.subs))
		})
	}
	bc.expectSilence(50 * time.Millisecond)

	tok := c.Subscribe(ctx, []Subscription{{Filter: "plain/topic"}}, nil)
	sub := expectPacket[*SubscribePacket](bc)
	bc.write(&SubackPacket{PacketID: sub.PacketID, ReasonCodes: []ReasonCode{ReasonGrantedQoS0}})
	_, err := await(t, tok)
	require.NoError(t, err)
}
