package mqtt5

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidBroker is returned for a broker entry that cannot be parsed.
var ErrInvalidBroker = errors.New("invalid broker address")

// Broker schemes accepted in the broker list.
const (
	SchemeTCP  = "tcp"
	SchemeTLS  = "tls"
	SchemeWS   = "ws"
	SchemeWSS  = "wss"
	SchemeQUIC = "quic"
	SchemeUnix = "unix"
)

var schemeAliases = map[string]string{
	"tcp":   SchemeTCP,
	"mqtt":  SchemeTCP,
	"tls":   SchemeTLS,
	"ssl":   SchemeTLS,
	"mqtts": SchemeTLS,
	"ws":    SchemeWS,
	"wss":   SchemeWSS,
	"quic":  SchemeQUIC,
	"unix":  SchemeUnix,
}

// broker is one connection candidate.
type broker struct {
	// scheme is empty when the entry had none; the dialer then picks TCP,
	// or TLS when a TLS config is set.
	scheme string
	// address is host:port, the full URL for WebSocket brokers, or the
	// socket path for unix brokers.
	address string
}

func (b broker) String() string {
	switch b.scheme {
	case "":
		return b.address
	case SchemeWS, SchemeWSS:
		return b.address
	default:
		return b.scheme + "://" + b.address
	}
}

// parseBrokers splits a comma separated broker list. Entries without a
// port get defaultPort.
func parseBrokers(hosts string, defaultPort uint16) ([]broker, error) {
	var out []broker
	for _, entry := range strings.Split(hosts, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		b, err := parseBroker(entry, defaultPort)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, ErrNoBrokers
	}
	return out, nil
}

func parseBroker(entry string, defaultPort uint16) (broker, error) {
	scheme, rest, hasScheme := strings.Cut(entry, "://")
	if !hasScheme {
		addr, err := withPort(entry, defaultPort)
		if err != nil {
			return broker{}, err
		}
		return broker{address: addr}, nil
	}

	canonical, ok := schemeAliases[strings.ToLower(scheme)]
	if !ok {
		return broker{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBroker, scheme)
	}

	switch canonical {
	case SchemeUnix:
		if rest == "" {
			return broker{}, fmt.Errorf("%w: empty socket path", ErrInvalidBroker)
		}
		return broker{scheme: canonical, address: rest}, nil
	case SchemeWS, SchemeWSS:
		u, err := url.Parse(canonical + "://" + rest)
		if err != nil {
			return broker{}, fmt.Errorf("%w: %v", ErrInvalidBroker, err)
		}
		if u.Hostname() == "" {
			return broker{}, fmt.Errorf("%w: missing host in %q", ErrInvalidBroker, entry)
		}
		if u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(int(defaultPort)))
		}
		return broker{scheme: canonical, address: u.String()}, nil
	default:
		addr, err := withPort(strings.TrimSuffix(rest, "/"), defaultPort)
		if err != nil {
			return broker{}, err
		}
		return broker{scheme: canonical, address: addr}, nil
	}
}

func withPort(hostport string, defaultPort uint16) (string, error) {
	if host, port, err := net.SplitHostPort(hostport); err == nil {
		if host == "" {
			return "", fmt.Errorf("%w: missing host in %q", ErrInvalidBroker, hostport)
		}
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return "", fmt.Errorf("%w: bad port in %q", ErrInvalidBroker, hostport)
		}
		return hostport, nil
	}

	host := strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
	if host == "" || strings.ContainsAny(host, "/ ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidBroker, hostport)
	}
	return net.JoinHostPort(host, strconv.Itoa(int(defaultPort))), nil
}

// nextBrokerLocked returns the next candidate in round-robin order.
func (c *Client) nextBrokerLocked() broker {
	b := c.brokers[c.brokerIdx%len(c.brokers)]
	c.brokerIdx = (c.brokerIdx + 1) % len(c.brokers)
	return b
}
