package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/routine"
	"go.uber.org/zap"
)

type defaultProducer struct {
	logger logger.Logger
	p      *kafka.Producer
	runner routine.Runner

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewProducer validates the cluster and creates a producer
func NewProducer(log logger.Logger, config *ProducerConfig) (Producer, error) {
	log = logger.OrNop(log)
	if config == nil {
		config = DefaultProducerConfig()
	} else {
		config = config.MergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validateKafkaCluster(log, config.Brokers); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(config.BuildConfigMap())
	if err != nil {
		return nil, ErrConnection(err)
	}

	kp := &defaultProducer{
		logger: log,
		p:      producer,
		runner: routine.New(log),
		done:   make(chan struct{}),
	}
	kp.runner.GoNamed("kafka-producer-events", kp.handleEvents)

	log.Info("kafka producer initialized", zap.Strings("brokers", config.Brokers))
	return kp, nil
}

// handleEvents logs delivery reports of Produce and client errors
func (kp *defaultProducer) handleEvents() {
	for {
		select {
		case <-kp.done:
			return
		case e, ok := <-kp.p.Events():
			if !ok {
				return
			}
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					kp.logger.Error("failed to deliver message",
						zap.String("topic", topicName(ev.TopicPartition.Topic)),
						zap.Error(ev.TopicPartition.Error),
					)
				}
			case kafka.Error:
				kp.logger.Error("kafka producer error",
					zap.Int("code", int(ev.Code())),
					zap.String("error", ev.String()),
				)
			default:
				kp.logger.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
			}
		}
	}
}

func (kp *defaultProducer) Produce(_ context.Context, msg *Message) error {
	m, err := kp.build(msg)
	if err != nil {
		return err
	}
	return kp.p.Produce(m, nil)
}

func (kp *defaultProducer) ProduceSync(ctx context.Context, msg *Message) error {
	m, err := kp.build(msg)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	if err := kp.p.Produce(m, delivery); err != nil {
		return ErrDelivery(*m.TopicPartition.Topic, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		report, ok := e.(*kafka.Message)
		if !ok {
			return ErrDelivery(*m.TopicPartition.Topic, fmt.Errorf("unexpected delivery event %T", e))
		}
		if report.TopicPartition.Error != nil {
			return ErrDelivery(*m.TopicPartition.Topic, report.TopicPartition.Error)
		}
		kp.logger.Debug("message delivered",
			zap.String("topic", topicName(report.TopicPartition.Topic)),
			zap.Int32("partition", report.TopicPartition.Partition),
			zap.Int64("offset", int64(report.TopicPartition.Offset)),
		)
		return nil
	}
}

func (kp *defaultProducer) build(msg *Message) (*kafka.Message, error) {
	if kp.closed.Load() {
		return nil, ErrProducerClosed
	}
	return toKafkaMessage(msg)
}

func toKafkaMessage(msg *Message) (*kafka.Message, error) {
	if msg.TopicPartition.Topic == nil || *msg.TopicPartition.Topic == "" {
		return nil, ErrInvalidConfig("topic is required")
	}
	if msg.Value == nil {
		return nil, ErrInvalidConfig("value is required")
	}

	m := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     msg.TopicPartition.Topic,
			Partition: msg.TopicPartition.Partition,
		},
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for _, header := range msg.Headers {
		m.Headers = append(m.Headers, kafka.Header{Key: header.Key, Value: header.Value})
	}
	return m, nil
}

// Close flushes outstanding messages for up to 10 seconds and closes the
// producer. It can be called multiple times safely.
func (kp *defaultProducer) Close() error {
	kp.closeOnce.Do(func() {
		kp.closed.Store(true)
		if remaining := kp.p.Flush(int((10 * time.Second).Milliseconds())); remaining > 0 {
			kp.logger.Warn("producer closed with undelivered messages", zap.Int("remaining", remaining))
		}
		close(kp.done)
		kp.runner.Wait()
		kp.p.Close()
	})
	return nil
}

func topicName(topic *string) string {
	if topic == nil {
		return ""
	}
	return *topic
}
