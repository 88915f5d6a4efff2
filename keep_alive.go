package mqtt5

import (
	"context"
	"time"
)

// keepAliveTimings are the per-connection ping and sentry periods.
type keepAliveTimings struct {
	ping time.Duration
	read time.Duration
}

// deriveKeepAlive computes the timings for a keep-alive in seconds. The ping
// period is three quarters of the keep-alive and the sentry allows one and a
// half keep-alives without traffic. Non-zero overrides replace the derived
// values; a keep-alive of zero disables whatever is not overridden.
func deriveKeepAlive(seconds uint16, pingOverride, readOverride time.Duration) keepAliveTimings {
	ka := time.Duration(seconds) * time.Second
	t := keepAliveTimings{
		ping: ka * 3 / 4,
		read: ka * 3 / 2,
	}
	if pingOverride > 0 {
		t.ping = pingOverride
	}
	if readOverride > 0 {
		t.read = readOverride
	}
	return t
}

// pingLoop writes a PINGREQ every interval until ctx is done.
func (c *Client) pingLoop(ctx context.Context, cn *connection) error {
	if cn.timings.ping <= 0 {
		return nil
	}

	ticker := time.NewTicker(cn.timings.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.mu.Lock()
			c.pushControlLocked(cn, &PingreqPacket{})
			c.mu.Unlock()
		}
	}
}

// sentryLoop fails the connection when nothing was read for the read
// timeout. Every inbound packet moves the deadline.
func (c *Client) sentryLoop(ctx context.Context, cn *connection) error {
	timeout := cn.timings.read
	if timeout <= 0 {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			idle := time.Since(cn.lastRead())
			if idle >= timeout {
				c.log.Warn("keep-alive timeout", LogFields{
					LogFieldBroker: cn.broker.String(),
					"idle":         idle.String(),
				})
				return ErrKeepAliveTimeout
			}
			timer.Reset(timeout - idle)
		}
	}
}
