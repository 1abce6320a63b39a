package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/dailyyoga/offline/queue"
	"github.com/vmihailenco/msgpack/v5"
)

// Header keys set on published operations
const (
	HeaderOperationID   = "operation-id"
	HeaderOperationType = "operation-type"
	HeaderAttempt       = "attempt"
)

// OperationEnvelope is the wire form of a published operation. The payload
// stays in the msgpack form it was queued in.
type OperationEnvelope struct {
	ID         string             `msgpack:"id"`
	Type       string             `msgpack:"type"`
	Payload    msgpack.RawMessage `msgpack:"payload"`
	EnqueuedAt time.Time          `msgpack:"enqueued_at"`
	Attempt    int                `msgpack:"attempt"`
}

// NewExecutor returns a queue executor that publishes each operation to topic
// and succeeds once the broker acknowledges it. The operation id is the
// message key, so retries of one operation land on one partition and
// consumers can drop duplicates by key.
func NewExecutor(producer Producer, topic string) queue.Executor {
	return func(ctx context.Context, op queue.Operation) error {
		msg, err := operationMessage(topic, op)
		if err != nil {
			return err
		}
		return producer.ProduceSync(ctx, msg)
	}
}

func operationMessage(topic string, op queue.Operation) (*Message, error) {
	attempt := op.Retries + 1
	value, err := msgpack.Marshal(OperationEnvelope{
		ID:         op.ID,
		Type:       op.Type,
		Payload:    op.Payload,
		EnqueuedAt: op.EnqueuedAt,
		Attempt:    attempt,
	})
	if err != nil {
		return nil, err
	}

	return &Message{
		Key:   []byte(op.ID),
		Value: value,
		TopicPartition: TopicPartition{
			Topic:     &topic,
			Partition: PartitionAny,
		},
		Headers: []Header{
			{Key: HeaderOperationID, Value: []byte(op.ID)},
			{Key: HeaderOperationType, Value: []byte(op.Type)},
			{Key: HeaderAttempt, Value: []byte(strconv.Itoa(attempt))},
		},
	}, nil
}

// DecodeOperation decodes a message published by an executor
func DecodeOperation(msg *Message) (OperationEnvelope, error) {
	var env OperationEnvelope
	err := msgpack.Unmarshal(msg.Value, &env)
	return env, err
}
