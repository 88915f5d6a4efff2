package mqtt5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name  string
		hosts string
		want  []broker
	}{
		{
			name:  "host without port",
			hosts: "broker.local",
			want:  []broker{{address: "broker.local:1883"}},
		},
		{
			name:  "list with spaces and empty entries",
			hosts: " a:1884 , ,b ",
			want:  []broker{{address: "a:1884"}, {address: "b:1883"}},
		},
		{
			name:  "ipv6",
			hosts: "[::1], [fe80::1]:8883",
			want:  []broker{{address: "[::1]:1883"}, {address: "[fe80::1]:8883"}},
		},
		{
			name:  "scheme aliases",
			hosts: "mqtt://a, mqtts://b:8883, ssl://c, quic://d:14567",
			want: []broker{
				{scheme: SchemeTCP, address: "a:1883"},
				{scheme: SchemeTLS, address: "b:8883"},
				{scheme: SchemeTLS, address: "c:1883"},
				{scheme: SchemeQUIC, address: "d:14567"},
			},
		},
		{
			name:  "websocket keeps the path",
			hosts: "ws://a/mqtt, wss://b:443/mqtt",
			want: []broker{
				{scheme: SchemeWS, address: "ws://a:1883/mqtt"},
				{scheme: SchemeWSS, address: "wss://b:443/mqtt"},
			},
		},
		{
			name:  "unix socket",
			hosts: "unix:///var/run/mqtt.sock",
			want:  []broker{{scheme: SchemeUnix, address: "/var/run/mqtt.sock"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBrokers(tt.hosts, DefaultPort)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBrokersErrors(t *testing.T) {
	_, err := parseBrokers("", DefaultPort)
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = parseBrokers(" , ", DefaultPort)
	assert.ErrorIs(t, err, ErrNoBrokers)

	for _, hosts := range []string{"http://a", "a:99999", ":1883", "unix://", "ws://", "a b"} {
		_, err := parseBrokers(hosts, DefaultPort)
		assert.ErrorIs(t, err, ErrInvalidBroker, hosts)
	}
}

func TestBrokerString(t *testing.T) {
	assert.Equal(t, "a:1883", broker{address: "a:1883"}.String())
	assert.Equal(t, "tls://a:8883", broker{scheme: SchemeTLS, address: "a:8883"}.String())
	assert.Equal(t, "ws://a:80/mqtt", broker{scheme: SchemeWS, address: "ws://a:80/mqtt"}.String())
}

func TestClientBrokersRoundRobin(t *testing.T) {
	c := New()
	require.NoError(t, c.Brokers("a, b, c", DefaultPort))

	c.mu.Lock()
	defer c.mu.Unlock()

	var got []string
	for range 5 {
		got = append(got, c.nextBrokerLocked().address)
	}
	assert.Equal(t, []string{"a:1883", "b:1883", "c:1883", "a:1883", "b:1883"}, got)
}
