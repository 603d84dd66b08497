package kafka

import (
	"context"

	"github.com/cockroachdb/errors"

	"cross/infra/config"
)

// Publisher delivers one keyed message and returns once the broker has
// acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// New returns the publisher selected by cfg.Client.
func New(cfg config.BrokerConfig) (Publisher, error) {
	switch cfg.Client {
	case "kafka-go":
		return NewProducer(cfg.Brokers, cfg.Topic), nil
	case "sarama", "":
		return NewSaramaProducer(cfg.Brokers, cfg.Topic, int(cfg.MaxRetries))
	default:
		return nil, errors.Newf("unknown broker client %q", cfg.Client)
	}
}
