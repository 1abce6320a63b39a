package kafka

import (
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
)

const (
	validateAttempts = 3
	validateDelay    = 2 * time.Second
	metadataTimeout  = 10 * time.Second
)

// validateKafkaCluster fetches cluster metadata to prove the brokers are
// reachable before a client is built
func validateKafkaCluster(log logger.Logger, brokers []string) error {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"request.timeout.ms": int(metadataTimeout.Milliseconds()),
	}

	var admin *kafka.AdminClient
	var err error
	for attempt := 1; attempt <= validateAttempts; attempt++ {
		if admin, err = kafka.NewAdminClient(configMap); err == nil {
			break
		}
		if attempt < validateAttempts {
			log.Warn("failed to create kafka admin client, retrying",
				zap.Error(err),
				zap.Int(logger.KeyAttempt, attempt),
			)
			time.Sleep(validateDelay)
		}
	}
	if err != nil {
		return ErrConnection(err)
	}
	defer admin.Close()

	if _, err := admin.GetMetadata(nil, false, int(metadataTimeout.Milliseconds())); err != nil {
		return ErrConnection(err)
	}

	log.Info("kafka brokers reachable", zap.Strings("brokers", brokers))
	return nil
}
