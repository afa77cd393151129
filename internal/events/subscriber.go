package events

// Message is a single event delivered to a Subscriber, carrying the topic it
// was published on and the raw JSON payload.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events matching the topic (NATS wildcards allowed)
	// on the returned channel. Call the returned cancel function to
	// unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
