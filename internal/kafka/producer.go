package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-passes/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher streams domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	logger *logger.Logger
}

// NewProducer returns a producer that picks the topic per message, so one writer serves every topic.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, log)
}

func newProducer(writer messageWriter, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Producer{writer: writer, logger: log}
}

// Publish encodes value as JSON and writes it to topic under key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", topic, err)
	}

	p.logger.LogKafka("PUBLISH", topic, string(msgBytes))

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
