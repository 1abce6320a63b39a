package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"go.uber.org/zap"
)

// consumeInstance is one member of the consumer group
type consumeInstance struct {
	logger logger.Logger
	config *ConsumerConfig
	name   string
	c      *kafka.Consumer
	runner routine.Runner
	cancel context.CancelFunc
	closed atomic.Bool
}

func newConsumeInstance(name string, config *ConsumerConfig, log logger.Logger) (*consumeInstance, error) {
	consumer, err := kafka.NewConsumer(config.BuildConfigMap())
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := consumer.SubscribeTopics(config.Topics, nil); err != nil {
		consumer.Close()
		return nil, ErrSubscribe(config.Topics, err)
	}

	return &consumeInstance{
		logger: log,
		config: config,
		name:   name,
		c:      consumer,
		runner: routine.New(log),
		cancel: func() {},
	}, nil
}

func (c *consumeInstance) Start(ctx context.Context, handler ConsumerMsgHandler) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.runner.GoNamedWithContext(ctx, c.name, func(ctx context.Context) {
		if err := c.consumeLoop(ctx, handler); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka consumer loop exited",
				zap.String("instance", c.name),
				zap.Error(err),
			)
		}
	})
	c.logger.Info("kafka consumer instance started", zap.String("instance", c.name))
}

func (c *consumeInstance) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	c.runner.Wait()

	if err := c.c.Close(); err != nil {
		return ErrConnection(err)
	}
	c.logger.Info("kafka consumer instance closed", zap.String("instance", c.name))
	return nil
}

func (c *consumeInstance) consumeLoop(ctx context.Context, handler ConsumerMsgHandler) error {
	pollMs := int(c.config.PollTimeout.Milliseconds())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch e := c.c.Poll(pollMs).(type) {
		case nil:
			continue
		case *kafka.Message:
			if err := c.handleMessage(ctx, e, handler); err != nil {
				c.logger.Error("kafka consumer handle message failed",
					zap.String("topic", topicName(e.TopicPartition.Topic)),
					zap.Int32("partition", e.TopicPartition.Partition),
					zap.Int64("offset", int64(e.TopicPartition.Offset)),
					zap.Error(err),
				)
			}
		case kafka.Error:
			c.logger.Error("kafka consumer error", zap.Int("code", int(e.Code())), zap.String("error", e.String()))
			if e.Code() == kafka.ErrAllBrokersDown {
				return ErrConsume(e)
			}
		case kafka.OffsetsCommitted:
			if e.Error != nil {
				c.logger.Error("failed to commit offsets", zap.Error(e.Error))
			}
		default:
			c.logger.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", e)))
		}
	}
}

func toMessage(msg *kafka.Message) *Message {
	message := &Message{
		Value:     msg.Value,
		Key:       msg.Key,
		Timestamp: msg.Timestamp,
		TopicPartition: TopicPartition{
			Topic:     msg.TopicPartition.Topic,
			Partition: msg.TopicPartition.Partition,
			Offset:    Offset(msg.TopicPartition.Offset),
		},
		Headers: make([]Header, len(msg.Headers)),
	}
	for i, header := range msg.Headers {
		message.Headers[i] = Header{Key: header.Key, Value: header.Value}
	}
	return message
}

// handleMessage tries handler up to MaxRetries times and commits on success.
// A message that keeps failing is skipped and its offset is not committed.
func (c *consumeInstance) handleMessage(ctx context.Context, msg *kafka.Message, handler ConsumerMsgHandler) error {
	start := time.Now()
	m := toMessage(msg)

	var err error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		err = routine.Call(func() error { return handler(ctx, m) })
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}

	if !c.config.EnableAutoCommit {
		if _, err := c.c.CommitMessage(msg); err != nil {
			return ErrCommit(err)
		}
	}

	c.logger.Debug("kafka message processed",
		zap.String("instance", c.name),
		zap.String("topic", topicName(msg.TopicPartition.Topic)),
		zap.Int64("offset", int64(msg.TopicPartition.Offset)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
