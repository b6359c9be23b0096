// Package kafka carries BioDockViz structure lifecycle events and analysis
// jobs over Kafka using segmentio/kafka-go.
package kafka

import (
	"context"
	"time"
)

// Message is a record read from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to be written.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. A returned error triggers retries.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is implemented by Producer and used wherever only publishing is
// needed.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}
