// Package kafka connects the data layer to Kafka through confluent-kafka-go.
//
// The producer publishes queued write operations (see NewExecutor) and the
// consumer receives cache invalidation events from other nodes (see
// NewInvalidationHandler).
package kafka

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Message is a kafka message independent of the client library
type Message struct {
	Value          []byte
	Key            []byte
	Timestamp      time.Time
	TopicPartition TopicPartition
	Headers        []Header
}

// GetHeader returns the value of header k, or nil
func (m *Message) GetHeader(k string) []byte {
	for _, header := range m.Headers {
		if header.Key == k {
			return header.Value
		}
	}
	return nil
}

// PartitionAny lets the producer pick the partition
const PartitionAny = kafka.PartitionAny

// TopicPartition is the topic and partition of a kafka message
type TopicPartition struct {
	Topic     *string
	Partition int32
	Offset    Offset
}

// Offset is the offset of a kafka message
type Offset int64

// Header is a kafka message header
type Header struct {
	Key   string
	Value []byte
}

// ConsumerMsgHandler handles a single consumed message
type ConsumerMsgHandler func(ctx context.Context, msg *Message) error

// Consumer consumes topics with one or more instances of a group
type Consumer interface {
	Start(ctx context.Context, handler ConsumerMsgHandler) error
	Close() error
}

// Producer publishes messages
type Producer interface {
	// Produce enqueues msg; delivery failures are only logged
	Produce(ctx context.Context, msg *Message) error
	// ProduceSync waits for the broker to acknowledge msg
	ProduceSync(ctx context.Context, msg *Message) error
	Close() error
}
