package kafka

import (
	"errors"

	"github.com/avito-tech/gravure/internal/broker"
	"github.com/avito-tech/gravure/internal/config"
)

var (
	_ broker.Consumer = (*ConsumerClient)(nil)
	_ broker.Producer = (*ProducerClient)(nil)
)

// KafkaClient bundles the intake consumer and the results producer used by
// the worker process.
type KafkaClient struct {
	Consumer *ConsumerClient
	Producer *ProducerClient
}

func NewKafkaClient(cfg *config.Config) *KafkaClient {
	return &KafkaClient{
		Consumer: NewConsumerClient(cfg),
		Producer: NewProducerClient(cfg),
	}
}

func (k *KafkaClient) Close() error {
	var errs []error

	if k.Consumer != nil {
		if err := k.Consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if k.Producer != nil {
		if err := k.Producer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
