package mqtt5

import (
	"errors"
	"fmt"
	"strings"
)

// Topic errors.
var (
	ErrInvalidTopic = errors.New("invalid topic")
	ErrEmptyTopic   = errors.New("topic cannot be empty")
)

const sharePrefix = "$share/"

// ValidateTopicName checks a topic used in PUBLISH or a will.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if err := validString(topic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTopic, err)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcard in topic name %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateTopicFilter checks a SUBSCRIBE or UNSUBSCRIBE filter, including
// shared subscriptions of the form $share/{group}/{filter}.
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return ErrEmptyTopic
	}
	if err := validString(filter); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTopic, err)
	}
	if rest, ok := strings.CutPrefix(filter, sharePrefix); ok {
		group, inner, found := strings.Cut(rest, "/")
		if !found || group == "" || inner == "" || strings.ContainsAny(group, "+#") {
			return fmt.Errorf("%w: shared subscription %q", ErrInvalidTopic, filter)
		}
		filter = inner
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: '#' must be the last level in %q", ErrInvalidTopic, filter)
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: wildcard must occupy a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}
