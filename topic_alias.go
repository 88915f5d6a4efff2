package mqtt5

import (
	"errors"
	"fmt"
)

// Topic alias errors.
var (
	ErrTopicAliasInvalid        = errors.New("topic alias invalid")
	ErrTopicAliasMaximumReached = errors.New("topic alias maximum reached")
)

// inboundAliases maps aliases chosen by the broker to topic names. The table
// belongs to one connection and starts empty on every connect.
type inboundAliases struct {
	max    uint16
	topics map[uint16]string
}

func newInboundAliases(maxAlias uint16) *inboundAliases {
	return &inboundAliases{max: maxAlias, topics: make(map[uint16]string)}
}

// resolve fills in p.Topic from the alias table, or records a new mapping
// when the PUBLISH carries both a topic and an alias.
func (a *inboundAliases) resolve(p *PublishPacket) error {
	if !p.Props.Has(PropTopicAlias) {
		return nil
	}
	alias := p.Props.GetUint16(PropTopicAlias)
	if alias == 0 || alias > a.max {
		return fmt.Errorf("%w: %d (maximum %d)", ErrTopicAliasInvalid, alias, a.max)
	}
	if p.Topic != "" {
		a.topics[alias] = p.Topic
		return nil
	}
	topic, ok := a.topics[alias]
	if !ok {
		return fmt.Errorf("%w: unknown alias %d", ErrTopicAliasInvalid, alias)
	}
	p.Topic = topic
	return nil
}
