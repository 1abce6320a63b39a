package kafka

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/multierr"
)

type defaultConsumer struct {
	instances []*consumeInstance
	closed    atomic.Bool
}

// NewConsumer validates the cluster and creates InstanceNum consumer
// instances in one group
func NewConsumer(log logger.Logger, config *ConsumerConfig) (Consumer, error) {
	log = logger.OrNop(log)
	if config == nil {
		config = DefaultConsumerConfig()
	} else {
		config = config.MergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validateKafkaCluster(log, config.Brokers); err != nil {
		return nil, err
	}

	c := &defaultConsumer{instances: make([]*consumeInstance, 0, config.InstanceNum)}
	for i := 0; i < config.InstanceNum; i++ {
		name := fmt.Sprintf("%s-instance-%d", config.GroupID, i+1)
		instance, err := newConsumeInstance(name, config, log)
		if err != nil {
			// release the instances already subscribed
			_ = c.Close()
			return nil, err
		}
		c.instances = append(c.instances, instance)
	}
	return c, nil
}

func (c *defaultConsumer) Start(ctx context.Context, handler ConsumerMsgHandler) error {
	if len(c.instances) == 0 {
		return ErrNoConsumerInstances
	}
	for _, instance := range c.instances {
		instance.Start(ctx, handler)
	}
	return nil
}

// Close stops every instance and waits for their loops to exit
func (c *defaultConsumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	for _, instance := range c.instances {
		err = multierr.Append(err, instance.Close())
	}
	return err
}
