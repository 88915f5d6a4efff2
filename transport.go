package mqtt5

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Conn is a stream transport to a broker. Closing it unblocks pending reads
// and writes.
type Conn interface {
	net.Conn
}

// Dialer establishes transports to brokers.
type Dialer interface {
	// Dial connects to the address with the given context.
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// TCPDialer connects to MQTT brokers over TCP.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration

	// Proxy, when set, tunnels the connection.
	Proxy *ProxyDialer
}

// Dial connects to the address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	if d.Proxy != nil {
		return d.Proxy.DialContext(ctx, "tcp", address)
	}
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", address)
}

// TLSDialer connects to MQTT brokers over TLS.
type TLSDialer struct {
	// Config is the TLS configuration.
	Config *tls.Config

	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration

	// Proxy, when set, tunnels the connection before the TLS handshake.
	Proxy *ProxyDialer
}

// Dial connects to the address and completes the TLS handshake.
func (d *TLSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	config := d.Config
	if config == nil {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if d.Proxy == nil {
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: d.Timeout},
			Config:    config,
		}
		return dialer.DialContext(ctx, "tcp", address)
	}

	raw, err := d.Proxy.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if config.ServerName == "" {
		config = config.Clone()
		if host, _, err := net.SplitHostPort(address); err == nil {
			config.ServerName = host
		}
	}
	conn := tls.Client(raw, config)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return conn, nil
}

// dial opens a transport to b according to its scheme, or through the
// configured Dialer.
func (c *Client) dial(ctx context.Context, b broker) (Conn, error) {
	if c.opts.dialer != nil {
		return c.opts.dialer.Dial(ctx, b.address)
	}

	proxy, err := c.proxyDialer()
	if err != nil {
		return nil, err
	}

	scheme := b.scheme
	if scheme == "" {
		scheme = SchemeTCP
		if c.opts.tlsConfig != nil {
			scheme = SchemeTLS
		}
	}

	var d Dialer
	switch scheme {
	case SchemeTCP:
		d = &TCPDialer{Proxy: proxy}
	case SchemeTLS:
		d = &TLSDialer{Config: c.opts.tlsConfig, Proxy: proxy}
	case SchemeWS, SchemeWSS:
		ws := NewWSDialer()
		if c.opts.tlsConfig != nil {
			ws.Dialer.TLSClientConfig = c.opts.tlsConfig
		}
		if proxy != nil {
			ws.Dialer.NetDialContext = proxy.DialContext
		}
		d = ws
	case SchemeQUIC:
		d = NewQUICDialer(c.opts.tlsConfig)
	case SchemeUnix:
		d = NewUnixDialer()
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBroker, scheme)
	}

	return d.Dial(ctx, b.address)
}

func (c *Client) proxyDialer() (*ProxyDialer, error) {
	if c.opts.proxy == nil {
		return nil, nil
	}
	return NewProxyDialer(c.opts.proxy.URL, c.opts.proxy.Username, c.opts.proxy.Password)
}
