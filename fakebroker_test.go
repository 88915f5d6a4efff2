package mqtt5

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// fakeBroker accepts client connections on a loopback port. Tests script
// the broker side from the test goroutine.
type fakeBroker struct {
	ln    net.Listener
	conns chan net.Conn
	quit  chan struct{}

	mu     sync.Mutex
	opened []net.Conn
	wg     sync.WaitGroup
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return newListenerBroker(t, ln)
}

// newListenerBroker serves connections accepted from ln.
func newListenerBroker(t *testing.T, ln net.Listener) *fakeBroker {
	t.Helper()

	b := newDetachedBroker(t)
	b.ln = ln
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if !b.add(conn) {
				return
			}
		}
	}()
	return b
}

// newDetachedBroker returns a broker without a listener. Connections are
// handed to it with add.
func newDetachedBroker(t *testing.T) *fakeBroker {
	t.Helper()

	b := &fakeBroker{conns: make(chan net.Conn, 8), quit: make(chan struct{})}
	t.Cleanup(b.close)
	return b
}

// add hands a server side connection to the test. It reports false once
// the broker is closed.
func (b *fakeBroker) add(conn net.Conn) bool {
	b.mu.Lock()
	b.opened = append(b.opened, conn)
	b.mu.Unlock()

	select {
	case b.conns <- conn:
		return true
	case <-b.quit:
		conn.Close()
		return false
	}
}

func (b *fakeBroker) addr() string {
	return b.ln.Addr().String()
}

func (b *fakeBroker) close() {
	close(b.quit)
	if b.ln != nil {
		b.ln.Close()
	}
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.opened {
		conn.Close()
	}
}

// accept waits for the next client connection.
func (b *fakeBroker) accept(t *testing.T) *brokerConn {
	t.Helper()

	select {
	case conn := <-b.conns:
		return &brokerConn{t: t, conn: conn}
	case <-time.After(testTimeout):
		require.FailNow(t, "no client connection")
		return nil
	}
}

// brokerConn is the broker end of one client connection.
type brokerConn struct {
	t    *testing.T
	conn net.Conn
}

func (c *brokerConn) read() Packet {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	pkt, err := ReadPacket(c.conn, 0)
	require.NoError(c.t, err)
	return pkt
}

func (c *brokerConn) write(p Packet) {
	c.t.Helper()

	require.NoError(c.t, WritePacket(c.conn, p))
}

// handshake reads the CONNECT and answers with connack.
func (c *brokerConn) handshake(connack *ConnackPacket) *ConnectPacket {
	c.t.Helper()

	connect := expectPacket[*ConnectPacket](c)
	if connack == nil {
		connack = &ConnackPacket{}
	}
	c.write(connack)
	return connect
}

// expectSilence asserts that the client sends nothing for d.
func (c *brokerConn) expectSilence(d time.Duration) {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	pkt, err := ReadPacket(c.conn, 0)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	assert.Failf(c.t, "unexpected packet", "got %v, %v", pkt, err)
}

// expectClosed asserts that the client closes the connection.
func (c *brokerConn) expectClosed() {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	for {
		_, err := ReadPacket(c.conn, 0)
		if err == nil {
			continue
		}
		assert.False(c.t, errors.Is(err, os.ErrDeadlineExceeded), "connection still open")
		return
	}
}

func expectPacket[T Packet](c *brokerConn) T {
	c.t.Helper()

	pkt := c.read()
	v, ok := pkt.(T)
	require.Truef(c.t, ok, "got %T", pkt)
	return v
}

// runClient starts Run in the background with a fast test configuration.
// Cleanup cancels the client and waits for Run.
func runClient(t *testing.T, brokers string, opts ...Option) (*Client, <-chan error) {
	t.Helper()

	base := []Option{
		WithBrokers(brokers, DefaultPort),
		WithClientID("test-client"),
		WithKeepAlive(0),
		WithConnectTimeout(testTimeout),
		WithReconnectBackoff(10*time.Millisecond, 50*time.Millisecond),
	}
	c := New(append(base, opts...)...)

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background())
		close(done)
	}()

	t.Cleanup(func() {
		c.Cancel()
		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Error("Run did not return")
		}
	})
	return c, done
}

// await waits for a token with the test timeout.
func await[T any](t *testing.T, tok *Token[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	res, err := tok.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "token did not complete")
	return res, err
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(testTimeout):
		require.FailNow(t, "Run did not return")
		return nil
	}
}

func waitState(t *testing.T, c *Client, want ConnState) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.State() == want
	}, testTimeout, 5*time.Millisecond, "state %s", want)
}
