package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-svc/middleware"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func InitProducer(brokers []string, logger *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", brokers))
	return producer, nil
}

// Publisher writes JSON events with the caller's trace context in the
// message headers.
type Publisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewPublisher(producer sarama.SyncProducer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(eventJSON),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	carrier := make(producerHeaderCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = []sarama.RecordHeader(carrier)

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Info("Event published",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

type producerHeaderCarrier []sarama.RecordHeader

func (c producerHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *producerHeaderCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (c producerHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
