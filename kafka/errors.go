package kafka

import "fmt"

var (
	// ErrNoConsumerInstances no consumer instances
	ErrNoConsumerInstances = fmt.Errorf("kafka: no consumer instances")
	// ErrProducerClosed is returned when producing after Close
	ErrProducerClosed = fmt.Errorf("kafka: producer is closed")
	// ErrInvalidEvent is returned for an invalidation event with neither key nor prefix
	ErrInvalidEvent = fmt.Errorf("kafka: invalidation event needs a key or a prefix")
)

// ErrInvalidConfig Kafka configuration error
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("kafka: invalid config: %s", msg)
}

// ErrConnection Kafka connection error
func ErrConnection(err error) error {
	return fmt.Errorf("kafka: connection failed: %w", err)
}

// ErrSubscribe subscribe error
func ErrSubscribe(topics []string, err error) error {
	return fmt.Errorf("kafka: subscribe to topics %v failed: %w", topics, err)
}

// ErrConsume consume message error
func ErrConsume(err error) error {
	return fmt.Errorf("kafka: consume message failed: %w", err)
}

// ErrCommit commit message error
func ErrCommit(err error) error {
	return fmt.Errorf("kafka: commit offsets failed: %w", err)
}

// ErrDelivery broker rejected or failed a message
func ErrDelivery(topic string, err error) error {
	return fmt.Errorf("kafka: delivery to %s failed: %w", topic, err)
}

// ErrDecodeEvent malformed invalidation event
func ErrDecodeEvent(err error) error {
	return fmt.Errorf("kafka: decode invalidation event: %w", err)
}
