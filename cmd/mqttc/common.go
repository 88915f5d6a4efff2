package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	mqtt5 "github.com/Faaux/async-mqtt5"
)

// session is a running client with the goroutine driving Run.
type session struct {
	client  *mqtt5.Client
	metrics *mqtt5.MemoryMetrics
	done    chan struct{}
	err     error
}

// startSession builds a client from the current configuration and starts
// Run in the background.
func startSession(ctx context.Context) (*session, error) {
	s := &session{
		metrics: mqtt5.NewMemoryMetrics(),
		done:    make(chan struct{}),
	}

	opts, err := buildClientOptions(s.metrics)
	if err != nil {
		return nil, err
	}
	s.client = mqtt5.New(opts...)
	printVerbose("Client ID: %s", s.client.ClientID())

	go func() {
		defer close(s.done)
		s.err = s.client.Run(ctx)
	}()

	return s, nil
}

// runError returns the error Run stopped with, or nil while it runs.
func (s *session) runError() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// close disconnects, waits for Run and prints the metrics summary.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.client.Disconnect(ctx, mqtt5.ReasonNormalDisconnection, nil).Wait(ctx); err != nil {
		printVerbose("Disconnect: %v", err)
		s.client.Cancel()
	}
	<-s.done

	if showMetrics {
		printMetrics(s.metrics)
	}
}

// await waits for tok within the operation timeout. A Run failure is
// reported instead of the abort it causes.
func await[T any](ctx context.Context, s *session, tok *mqtt5.Token[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var zero T
	select {
	case <-tok.Done():
		res, err := tok.Result()
		if errors.Is(err, mqtt5.ErrOperationAborted) {
			select {
			case <-s.done:
				if s.err != nil {
					return zero, s.err
				}
			case <-time.After(100 * time.Millisecond):
			}
		}
		return res, err
	case <-s.done:
		if s.err != nil {
			return zero, s.err
		}
		return tok.Wait(ctx)
	case <-ctx.Done():
		return zero, fmt.Errorf("timed out after %s", timeout)
	}
}

// buildClientOptions builds client options from the current configuration.
func buildClientOptions(metrics mqtt5.Metrics) ([]mqtt5.Option, error) {
	id := clientID
	if id == "" {
		id = "mqttc-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	opts := []mqtt5.Option{
		mqtt5.WithBrokers(brokers, mqtt5.DefaultPort),
		mqtt5.WithClientID(id),
		mqtt5.WithKeepAlive(keepAliveSeconds(keepAlive)),
		mqtt5.WithConnectTimeout(timeout),
		mqtt5.WithMetrics(metrics),
		mqtt5.OnEvent(printEvent),
	}

	if username != "" {
		opts = append(opts, mqtt5.WithCredentials(username, password))
	}

	tlsConfig, err := buildTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, mqtt5.WithTLS(tlsConfig))
	}

	if verbose {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		opts = append(opts, mqtt5.WithLogger(mqtt5.NewZapLogger(zl, mqtt5.LogLevelDebug)))
	}

	return opts, nil
}

func keepAliveSeconds(d time.Duration) uint16 {
	s := d / time.Second
	if s > math.MaxUint16 {
		return math.MaxUint16
	}
	if s < 0 {
		return 0
	}
	return uint16(s)
}

// buildTLSConfig builds TLS configuration from flags.
func buildTLSConfig() (*tls.Config, error) {
	if caFile == "" && certFile == "" && keyFile == "" && !insecure {
		return nil, nil
	}

	config := &tls.Config{
		InsecureSkipVerify: insecure,
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = pool
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

func printEvent(_ *mqtt5.Client, event error) {
	var (
		connected *mqtt5.ConnectedEvent
		lost      *mqtt5.ConnectionLostError
		reconnect *mqtt5.ReconnectEvent
	)
	switch {
	case errors.As(event, &connected):
		printVerbose("%s (session present: %v)", color.GreenString("Connected"), connected.SessionPresent)
	case errors.As(event, &lost):
		fmt.Fprintf(os.Stderr, "%s: %v\n", color.YellowString("Connection lost"), lost.Cause)
	case errors.As(event, &reconnect):
		printVerbose("%s in %s (pass %d)", color.YellowString("Reconnecting"), reconnect.Delay, reconnect.Attempt)
	default:
		printVerbose("Event: %v", event)
	}
}

func printMetrics(m *mqtt5.MemoryMetrics) {
	values := m.Values()
	fmt.Fprintln(os.Stderr, color.New(color.Bold).Sprint("Metrics:"))
	for _, k := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(os.Stderr, "  %s %v\n", color.CyanString(k), values[k])
	}
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, color.RedString("Error: ")+format+"\n", args...)
}

// parseUserProperties parses user properties from key=value strings.
func parseUserProperties(props []string) ([]mqtt5.StringPair, error) {
	pairs := make([]mqtt5.StringPair, 0, len(props))
	for _, p := range props {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid user property %q, want key=value", p)
		}
		pairs = append(pairs, mqtt5.StringPair{Key: key, Value: value})
	}
	return pairs, nil
}

func parseQoS(qos int) (byte, error) {
	if qos < 0 || qos > 2 {
		return 0, fmt.Errorf("invalid QoS level: %d (must be 0, 1, or 2)", qos)
	}
	return byte(qos), nil
}
