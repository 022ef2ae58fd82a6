package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/config"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
)

var _ adapter.NotificationSender = (*KafkaSender)(nil)

// KafkaSender publishes notification requests to a topic consumed by the
// delivery service. Messages are keyed by subscription id so every request
// for one subscription lands on the same partition.
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
	log      *zerolog.Logger
}

func NewSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.MaxMessageBytes = 1000000
	return sc
}

func NewKafkaSender(cfg config.KafkaConfig, logger *zerolog.Logger) (*KafkaSender, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	s := NewKafkaSenderWithProducer(producer, cfg.Topic, logger)
	s.log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka notification sender initialized")
	return s, nil
}

func NewKafkaSenderWithProducer(producer sarama.SyncProducer, topic string, logger *zerolog.Logger) *KafkaSender {
	l := logger.With().Str("component", "KafkaSender").Logger()
	return &KafkaSender{producer: producer, topic: topic, log: &l}
}

func (s *KafkaSender) Send(ctx context.Context, n model.NotificationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(n.SubscriptionID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(n.Kind)},
			{Key: []byte("event_id"), Value: []byte(n.ID)},
		},
	}
	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		s.log.Error().Err(err).Str("subscription_id", n.SubscriptionID).Str("kind", string(n.Kind)).Msg("failed to publish notification")
		return fmt.Errorf("send notification: %w", err)
	}
	s.log.Debug().
		Str("event_id", n.ID).
		Str("kind", string(n.Kind)).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("notification published")
	return nil
}

func (s *KafkaSender) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
