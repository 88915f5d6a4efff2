package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	mqtt5 "github.com/Faaux/async-mqtt5"
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to topics",
	Long: `Subscribe to one or more MQTT topics and print received messages.

Supports MQTT wildcards:
  - + matches a single level (e.g., sensor/+/temp)
  - # matches multiple levels (e.g., sensor/#)

Examples:
  # Subscribe to multiple topics
  mqttc sub -t "sensor/#" -t "actuator/#"

  # Stop after 10 messages
  mqttc sub -t "events" -c 10 --timestamps`,
	RunE: runSub,
}

var (
	subTopics         []string
	subQoS            int
	subCount          int
	subNoLocal        bool
	subRetainHandling int
	subTimestamps     bool
	subShowProps      bool
)

func init() {
	rootCmd.AddCommand(subCmd)

	subCmd.Flags().StringArrayVarP(&subTopics, "topic", "t", nil, "topics to subscribe to (repeatable, required)")
	subCmd.Flags().IntVarP(&subQoS, "qos", "q", 0, "QoS level (0, 1, or 2)")
	subCmd.Flags().IntVarP(&subCount, "count", "c", 0, "maximum number of messages (0 = unlimited)")
	subCmd.Flags().BoolVar(&subNoLocal, "no-local", false, "don't receive own messages")
	subCmd.Flags().IntVar(&subRetainHandling, "retain-handling", 0, "retain handling: 0=send, 1=new only, 2=none")
	subCmd.Flags().BoolVar(&subTimestamps, "timestamps", false, "show timestamps")
	subCmd.Flags().BoolVar(&subShowProps, "show-properties", false, "show message properties")

	subCmd.MarkFlagRequired("topic")
}

func runSub(_ *cobra.Command, _ []string) error {
	if len(subTopics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}

	qos, err := parseQoS(subQoS)
	if err != nil {
		return err
	}

	if subRetainHandling < 0 || subRetainHandling > 2 {
		return fmt.Errorf("retain-handling must be 0, 1, or 2")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	subs := make([]mqtt5.Subscription, len(subTopics))
	for i, topic := range subTopics {
		subs[i] = mqtt5.Subscription{
			Filter:         topic,
			QoS:            qos,
			NoLocal:        subNoLocal,
			RetainHandling: mqtt5.RetainHandling(subRetainHandling),
		}
	}

	res, err := await(ctx, s, s.client.Subscribe(ctx, subs, nil))
	if err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	for i, rc := range res.ReasonCodes {
		if rc.IsError() {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", color.RedString("Refused"), subTopics[i], rc)
			continue
		}
		printVerbose("Subscribed to %s (%s)", subTopics[i], rc)
	}

	for received := 0; subCount == 0 || received < subCount; received++ {
		msg, err := s.client.Receive(ctx).Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, mqtt5.ErrOperationAborted) {
				<-s.done
				return s.runError()
			}
			return err
		}
		printMessage(msg)
	}

	return nil
}

func printMessage(msg *mqtt5.Message) {
	var b strings.Builder
	if subTimestamps {
		b.WriteString(color.HiBlackString(time.Now().Format(time.RFC3339Nano)))
		b.WriteByte(' ')
	}
	b.WriteString(color.CyanString(msg.Topic))
	if msg.Retain {
		b.WriteString(color.YellowString(" [retained]"))
	}
	b.WriteByte(' ')
	b.Write(msg.Payload)

	if subShowProps {
		if ct := msg.ContentType(); ct != "" {
			fmt.Fprintf(&b, "\n  content-type: %s", ct)
		}
		if rt := msg.ResponseTopic(); rt != "" {
			fmt.Fprintf(&b, "\n  response-topic: %s", rt)
		}
		if cd := msg.CorrelationData(); len(cd) > 0 {
			fmt.Fprintf(&b, "\n  correlation-data: %x", cd)
		}
		for _, up := range msg.UserProperties() {
			fmt.Fprintf(&b, "\n  %s=%s", up.Key, up.Value)
		}
	}

	fmt.Println(b.String())
}
