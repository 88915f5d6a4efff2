package mqtt5

import (
	"crypto/tls"
	"time"
)

// Defaults used when no option overrides them.
const (
	DefaultPort           = 1883
	DefaultKeepAlive      = 60
	DefaultConnectTimeout = 10 * time.Second
	DefaultBackoffInitial = time.Second
	DefaultBackoffMax     = 30 * time.Second

	// MaxPacketSizeProtocol is the largest packet MQTT can express.
	MaxPacketSizeProtocol = 268435460
)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// Session settings
	clientID   string
	username   string
	password   []byte
	keepAlive  uint16
	cleanStart bool
	will       *Will

	// Brokers
	brokers     string
	defaultPort uint16

	// Transport
	tlsConfig *tls.Config
	dialer    Dialer
	proxy     *ProxyConfig

	// Timeouts
	connectTimeout time.Duration
	writeTimeout   time.Duration
	pingInterval   time.Duration
	readTimeout    time.Duration

	// Reconnect backoff
	backoffInitial time.Duration
	backoffMax     time.Duration

	// CONNECT properties
	sessionExpiry     uint32
	receiveMaximum    uint16
	topicAliasMaximum uint16
	maxPacketSize     uint32
	userProperties    []StringPair

	producerInterceptors []ProducerInterceptor
	consumerInterceptors []ConsumerInterceptor

	// Observability
	logger  Logger
	metrics Metrics
	onEvent EventHandler
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		keepAlive:      DefaultKeepAlive,
		cleanStart:     true,
		defaultPort:    DefaultPort,
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   5 * time.Second,
		backoffInitial: DefaultBackoffInitial,
		backoffMax:     DefaultBackoffMax,
		receiveMaximum: 65535,
		logger:         NewNoOpLogger(),
		metrics:        &NoOpMetrics{},
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithClientID sets the client identifier. An empty identifier lets the
// broker assign one, which is then reused on reconnect.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = []byte(password)
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. Zero disables
// pings and the read timeout unless they are set explicitly.
func WithKeepAlive(seconds uint16) Option {
	return func(o *clientOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanStart sets the Clean Start flag sent in every CONNECT.
func WithCleanStart(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanStart = clean
	}
}

// WithWill sets the Will message announced in CONNECT.
func WithWill(will *Will) Option {
	return func(o *clientOptions) {
		o.will = will
	}
}

// WithBrokers sets the broker list, in the format accepted by
// Client.Brokers.
func WithBrokers(hosts string, defaultPort uint16) Option {
	return func(o *clientOptions) {
		o.brokers = hosts
		o.defaultPort = defaultPort
	}
}

// WithTLS sets the TLS configuration. Brokers listed without a scheme are
// then dialed over TLS.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.tlsConfig = config
	}
}

// WithDialer replaces scheme based dialing. The dialer receives the broker
// address as written in the broker list, with the default port applied.
func WithDialer(d Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

// WithProxy routes TCP and TLS connections through an HTTP CONNECT or
// SOCKS5 proxy.
func WithProxy(config *ProxyConfig) Option {
	return func(o *clientOptions) {
		o.proxy = config
	}
}

// WithConnectTimeout bounds dialing plus the CONNECT/CONNACK exchange.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.connectTimeout = d
	}
}

// WithWriteTimeout sets the timeout for a single write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.writeTimeout = d
	}
}

// WithPingInterval overrides the PINGREQ period derived from the keep-alive.
func WithPingInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		o.pingInterval = d
	}
}

// WithReadTimeout overrides how long a connection may stay silent before it
// is considered dead.
func WithReadTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.readTimeout = d
	}
}

// WithReconnectBackoff sets the first and the largest delay between passes
// over the broker list.
func WithReconnectBackoff(initial, maxDelay time.Duration) Option {
	return func(o *clientOptions) {
		o.backoffInitial = initial
		o.backoffMax = maxDelay
	}
}

// WithSessionExpiryInterval sets the session expiry interval in seconds.
func WithSessionExpiryInterval(seconds uint32) Option {
	return func(o *clientOptions) {
		o.sessionExpiry = seconds
	}
}

// WithReceiveMaximum sets the maximum number of QoS 1 and 2 messages
// the client is willing to process concurrently.
func WithReceiveMaximum(maxValue uint16) Option {
	return func(o *clientOptions) {
		o.receiveMaximum = maxValue
	}
}

// WithTopicAliasMaximum sets the maximum number of topic aliases the client will accept.
func WithTopicAliasMaximum(maxValue uint16) Option {
	return func(o *clientOptions) {
		o.topicAliasMaximum = maxValue
	}
}

// WithMaxPacketSize sets the maximum packet size the client will accept.
// Values exceeding MaxPacketSizeProtocol are clamped to the protocol maximum.
func WithMaxPacketSize(size uint32) Option {
	return func(o *clientOptions) {
		if size > MaxPacketSizeProtocol {
			size = MaxPacketSizeProtocol
		}
		o.maxPacketSize = size
	}
}

// WithUserProperty adds a user property to CONNECT. Repeated calls keep
// their order.
func WithUserProperty(key, value string) Option {
	return func(o *clientOptions) {
		o.userProperties = append(o.userProperties, StringPair{Key: key, Value: value})
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// OnEvent sets the event handler for client lifecycle events and errors.
func OnEvent(handler EventHandler) Option {
	return func(o *clientOptions) {
		o.onEvent = handler
	}
}

// WithProducerInterceptors appends interceptors applied to every Publish.
func WithProducerInterceptors(interceptors ...ProducerInterceptor) Option {
	return func(o *clientOptions) {
		o.producerInterceptors = append(o.producerInterceptors, interceptors...)
	}
}

// WithConsumerInterceptors appends interceptors applied to every received
// message.
func WithConsumerInterceptors(interceptors ...ConsumerInterceptor) Option {
	return func(o *clientOptions) {
		o.consumerInterceptors = append(o.consumerInterceptors, interceptors...)
	}
}

// applyOptions applies all options to the default options.
func applyOptions(opts ...Option) *clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
