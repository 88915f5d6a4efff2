// Package mqtt5 is an asynchronous MQTT v5.0 client.
//
// This package implements the client side of the MQTT Version 5.0 OASIS
// Standard: https://docs.oasis-open.org/mqtt/mqtt/v5.0/mqtt-v5.0.html
//
// # Features
//
//   - Broker list with round-robin failover and exponential backoff
//   - Automatic reconnect; pending publishes, subscribes and unsubscribes
//     are resent on the next connection
//   - QoS 0, 1, 2 publish flows as explicit state machines
//   - Per-operation cancellation through context.Context
//   - Keep-alive pings and a read timeout per connection
//   - Receive Maximum flow control and server capability checks
//   - Transport: TCP, TLS, WebSocket, QUIC, Unix sockets, HTTP/SOCKS5 proxies
//
// # Client
//
// Create a client, start Run in its own goroutine and issue operations.
// Every operation returns a Token that completes exactly once:
//
//	c := mqtt5.New(
//	    mqtt5.WithBrokers("broker-a:1883, tls://broker-b", mqtt5.DefaultPort),
//	    mqtt5.WithClientID("sensor-17"),
//	)
//	go c.Run(ctx)
//
//	res, err := c.Publish(ctx, "sensors/17/temp", []byte("21.5"), 1, false, nil).Wait(ctx)
//
// Broker reason codes are results rather than errors: a PUBACK with
// ReasonNotAuthorized completes with err == nil and res.ReasonCode set.
// Errors are local: validation failures, ErrPIDOverrun, or
// ErrOperationAborted when the operation was cancelled or the client
// stopped. Cancelled operations carry ReasonEmpty in their results.
//
// Messages for active subscriptions are read with Receive:
//
//	msg, err := c.Receive(ctx).Wait(ctx)
//
// Cancel aborts everything and makes Run return ErrOperationAborted.
// Disconnect sends DISCONNECT first and makes Run return nil.
//
// # Packets
//
// The codec is exported for tools and tests: Encode, Decode, ReadPacket and
// WritePacket work with the Packet types of this package.
package mqtt5
