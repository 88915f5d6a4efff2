package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	mqtt5 "github.com/Faaux/async-mqtt5"
)

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish a message to a topic",
	Long: `Publish one or more messages to an MQTT topic.

The message payload can be provided via:
  - The -m/--message flag
  - A file with -f/--file
  - Standard input (piped)

Examples:
  # Simple publish
  mqttc pub -t "sensor/temp" -m "23.5"

  # Publish with QoS 2 and retain
  mqttc pub -t "config/device1" -m '{"enabled":true}' -q 2 --retain

  # Repeated publishing (100 messages, 1 second interval)
  mqttc pub -t "heartbeat" -m "ping" -n 100 -i 1s`,
	RunE: runPub,
}

var (
	pubTopic           string
	pubMessage         string
	pubFile            string
	pubQoS             int
	pubRetain          bool
	pubCount           int
	pubInterval        time.Duration
	pubContentType     string
	pubResponseTopic   string
	pubCorrelationData string
	pubUserProps       []string
	pubMessageExpiry   uint32
)

func init() {
	rootCmd.AddCommand(pubCmd)

	pubCmd.Flags().StringVarP(&pubTopic, "topic", "t", "", "topic to publish to (required)")
	pubCmd.Flags().StringVarP(&pubMessage, "message", "m", "", "message payload")
	pubCmd.Flags().StringVarP(&pubFile, "file", "f", "", "read payload from file")
	pubCmd.Flags().IntVarP(&pubQoS, "qos", "q", 0, "QoS level (0, 1, or 2)")
	pubCmd.Flags().BoolVarP(&pubRetain, "retain", "r", false, "retain message")
	pubCmd.Flags().IntVarP(&pubCount, "count", "n", 1, "number of messages to publish (0 = infinite)")
	pubCmd.Flags().DurationVarP(&pubInterval, "interval", "i", 0, "interval between messages")
	pubCmd.Flags().StringVar(&pubContentType, "content-type", "", "content type")
	pubCmd.Flags().StringVar(&pubResponseTopic, "response-topic", "", "response topic")
	pubCmd.Flags().StringVar(&pubCorrelationData, "correlation-data", "", "correlation data")
	pubCmd.Flags().StringArrayVar(&pubUserProps, "user-prop", nil, "user property key=value (repeatable)")
	pubCmd.Flags().Uint32Var(&pubMessageExpiry, "message-expiry", 0, "message expiry interval in seconds")

	pubCmd.MarkFlagRequired("topic")
}

func runPub(_ *cobra.Command, _ []string) error {
	payload, err := getPayload()
	if err != nil {
		return err
	}

	qos, err := parseQoS(pubQoS)
	if err != nil {
		return err
	}

	props, err := buildPublishProperties()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	published := 0
	start := time.Now()

	for i := 0; pubCount == 0 || i < pubCount; i++ {
		if ctx.Err() != nil {
			printVerbose("Interrupted, published %d messages", published)
			return nil
		}

		res, err := await(ctx, s, s.client.Publish(ctx, pubTopic, payload, qos, pubRetain, props))
		if err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		if res.ReasonCode.IsError() {
			return fmt.Errorf("publish refused: %s", res.ReasonCode)
		}
		published++

		printVerbose("Published [%d] to %s (QoS %d, reason %s)",
			published, color.CyanString(pubTopic), qos, res.ReasonCode)

		if pubInterval > 0 && (pubCount == 0 || i < pubCount-1) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pubInterval):
			}
		}
	}

	fmt.Printf("Published %d message(s) to %s in %s\n",
		published, color.CyanString(pubTopic), time.Since(start).Round(time.Millisecond))

	return nil
}

func getPayload() ([]byte, error) {
	if pubMessage != "" {
		return []byte(pubMessage), nil
	}

	if pubFile != "" {
		data, err := os.ReadFile(pubFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return data, nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	return nil, nil
}

func buildPublishProperties() (*mqtt5.Properties, error) {
	var props mqtt5.Properties

	if pubContentType != "" {
		props.Set(mqtt5.PropContentType, pubContentType)
	}
	if pubResponseTopic != "" {
		props.Set(mqtt5.PropResponseTopic, pubResponseTopic)
	}
	if pubCorrelationData != "" {
		props.Set(mqtt5.PropCorrelationData, []byte(pubCorrelationData))
	}
	if pubMessageExpiry > 0 {
		props.Set(mqtt5.PropMessageExpiryInterval, pubMessageExpiry)
	}

	pairs, err := parseUserProperties(pubUserProps)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		props.Add(mqtt5.PropUserProperty, p)
	}

	if props.Len() == 0 {
		return nil, nil
	}
	return &props, nil
}
