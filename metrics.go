package mqtt5

import (
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// MetricTypeCounter is a monotonically increasing counter.
	MetricTypeCounter MetricType = 0
	// MetricTypeGauge is a value that can go up and down.
	MetricTypeGauge MetricType = 1
	// MetricTypeHistogram tracks distribution of values.
	MetricTypeHistogram MetricType = 2
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge

	// Histogram returns a histogram metric.
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Add adds the given value to the gauge.
	Add(delta float64)

	// Sub subtracts the given value from the gauge.
	Sub(delta float64)

	// Value returns the current value.
	Value() float64
}

// Histogram tracks the distribution of values.
type Histogram interface {
	// Observe records a value.
	Observe(value float64)

	// ObserveDuration records a duration in seconds.
	ObserveDuration(d time.Duration)

	// Count returns the number of observations.
	Count() uint64

	// Sum returns the sum of all observations.
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return &noOpHistogram{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Add(_ float64)  {}
func (n *noOpGauge) Sub(_ float64)  {}
func (n *noOpGauge) Value() float64 { return 0 }

type noOpHistogram struct{}

func (n *noOpHistogram) Observe(_ float64)               {}
func (n *noOpHistogram) ObserveDuration(_ time.Duration) {}
func (n *noOpHistogram) Count() uint64                   { return 0 }
func (n *noOpHistogram) Sum() float64                    { return 0 }

// Metric names reported by the client.
const (
	// MetricConnectAttempts counts dial and handshake attempts.
	MetricConnectAttempts = "mqtt_client_connect_attempts_total"

	// MetricConnects counts established sessions.
	MetricConnects = "mqtt_client_connects_total"

	// MetricConnectionsLost counts established connections that ended.
	MetricConnectionsLost = "mqtt_client_connection_lost_total"

	// MetricConnectDuration observes the time from dial to CONNACK.
	MetricConnectDuration = "mqtt_client_connect_duration_seconds"

	// MetricPacketsSent is the total number of packets sent.
	MetricPacketsSent = "mqtt_client_packets_sent_total"

	// MetricPacketsReceived is the total number of packets received.
	MetricPacketsReceived = "mqtt_client_packets_received_total"

	// MetricPendingExchanges is the number of exchanges awaiting a reply.
	MetricPendingExchanges = "mqtt_client_pending_exchanges"
)

// LabelPacketType is the packet type label.
const LabelPacketType = "packet_type"

// clientMetrics records the client's metrics on a Metrics backend.
type clientMetrics struct {
	m Metrics
}

func (c clientMetrics) connectAttempt() {
	c.m.Counter(MetricConnectAttempts, nil).Inc()
}

func (c clientMetrics) connected(d time.Duration) {
	c.m.Counter(MetricConnects, nil).Inc()
	c.m.Histogram(MetricConnectDuration, nil).ObserveDuration(d)
}

func (c clientMetrics) connectionLost() {
	c.m.Counter(MetricConnectionsLost, nil).Inc()
}

func (c clientMetrics) packetSent(t PacketType) {
	c.m.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: t.String()}).Inc()
}

func (c clientMetrics) packetReceived(t PacketType) {
	c.m.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: t.String()}).Inc()
}

func (c clientMetrics) pending(n int) {
	c.m.Gauge(MetricPendingExchanges, nil).Set(float64(n))
}
