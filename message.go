package mqtt5

// Message is an application message received from the broker.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	// Props holds the PUBLISH properties, with the topic alias removed.
	Props Properties
}

// ContentType returns the content type property, if any.
func (m *Message) ContentType() string {
	return m.Props.GetString(PropContentType)
}

// ResponseTopic returns the response topic property, if any.
func (m *Message) ResponseTopic() string {
	return m.Props.GetString(PropResponseTopic)
}

// CorrelationData returns the correlation data property, if any.
func (m *Message) CorrelationData() []byte {
	return m.Props.GetBinary(PropCorrelationData)
}

// UserProperties returns the user properties in order.
func (m *Message) UserProperties() []StringPair {
	return m.Props.UserProperties()
}

func messageFromPublish(p *PublishPacket) *Message {
	props := p.Props.Clone()
	props.Delete(PropTopicAlias)
	return &Message{
		Topic:   p.Topic,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain,
		Props:   props,
	}
}

// Will is the message the broker publishes when the connection closes
// without a normal DISCONNECT.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	Props   Properties
}

func (w *Will) validate() error {
	if w.QoS > 2 {
		return ErrInvalidQoS
	}
	return ValidateTopicName(w.Topic)
}
